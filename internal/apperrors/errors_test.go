package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalSchemaError(t *testing.T) {
	cause := errors.New("no such column: status")
	err := fmt.Errorf("run aborted: %w", NewFatalSchema("ensure_index:idx_contacts_status", `CREATE INDEX "idx_contacts_status"`, cause))

	assert.True(t, IsFatalSchemaError(err))
	assert.False(t, IsResourceError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `step "ensure_index:idx_contacts_status"`)
	assert.Contains(t, err.Error(), `CREATE INDEX "idx_contacts_status"`)

	var fse *FatalSchemaError
	assert.True(t, errors.As(err, &fse))
	assert.Equal(t, "ensure_index:idx_contacts_status", fse.Step)
}

func TestResourceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewResource("open", "clinic_main", cause, "failed to connect to %s", "postgres")

	assert.True(t, IsResourceError(err))
	assert.False(t, IsFatalSchemaError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "resource error: open clinic_main: failed to connect to postgres: connection refused", err.Error())

	wrapsConfig := NewResource("open", "main", ErrConfig, "unsupported driver %q", "oracle")
	assert.True(t, IsConfigError(wrapsConfig))
}

func TestSentinelHelpers(t *testing.T) {
	testCases := []struct {
		name  string
		check func(error) bool
		err   error
	}{
		{"benign", IsBenignSchemaConflict, ErrBenignSchemaConflict},
		{"invalid plan", IsInvalidPlanError, ErrInvalidPlan},
		{"config", IsConfigError, ErrConfig},
		{"database", IsDatabaseError, ErrDatabase},
		{"not found", IsNotFoundError, ErrNotFound},
		{"validation", IsValidationError, ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(fmt.Errorf("context: %w", tc.err)))
			assert.False(t, tc.check(errors.New(tc.err.Error())))
		})
	}
}
