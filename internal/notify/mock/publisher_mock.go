package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/notify"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
)

// PublisherMock is a mock implementation of notify.Publisher
type PublisherMock struct {
	mock.Mock
}

// Ensure PublisherMock implements notify.Publisher
var _ notify.Publisher = (*PublisherMock)(nil)

// PublishReport mocks the PublishReport method
func (m *PublisherMock) PublishReport(ctx context.Context, report *provisioner.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// Close mocks the Close method
func (m *PublisherMock) Close() {
	m.Called()
}
