package usecase

import (
	"errors"

	"go.uber.org/multierr"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitFatalSchema = 1
	ExitResource    = 2
	ExitUsage       = 3
)

// ExitCode maps a run error to the process exit code. When clinics fail in
// different ways the resource failure wins, since its store never ran at all.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	code := ExitOK
	for _, e := range multierr.Errors(err) {
		if c := exitCodeOf(e); c > code {
			code = c
		}
	}
	return code
}

func exitCodeOf(err error) int {
	switch {
	case apperrors.IsConfigError(err) && !apperrors.IsResourceError(err),
		apperrors.IsValidationError(err),
		errors.Is(err, apperrors.ErrConfirmationRequired):
		return ExitUsage
	case apperrors.IsResourceError(err):
		return ExitResource
	default:
		return ExitFatalSchema
	}
}
