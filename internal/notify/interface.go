package notify

import (
	"context"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
)

// Publisher announces finished provisioning runs.
// This allows for easy mocking in tests
type Publisher interface {
	// PublishReport sends the report of one clinic's run
	PublishReport(ctx context.Context, report *provisioner.Report) error

	// Close releases the connection
	Close()
}
