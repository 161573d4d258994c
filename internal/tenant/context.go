package tenant

import (
	"context"
	"errors"
)

// Key for the clinic ID in context
type contextKey string

const (
	clinicIDKey contextKey = "clinicID"
	runIDKey    contextKey = "runID"
)

// ErrClinicIDNotFound is returned when no clinic ID is found in context
var ErrClinicIDNotFound = errors.New("clinic ID not found in context")

// ErrRunIDNotFound is returned when no provisioning run ID is found in context
var ErrRunIDNotFound = errors.New("run ID not found in context")

// WithClinicID adds the clinic being provisioned to the context
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicIDKey, clinicID)
}

// FromContext extracts the clinic ID from the context
func FromContext(ctx context.Context) (string, error) {
	clinicID, ok := ctx.Value(clinicIDKey).(string)
	if !ok || clinicID == "" {
		return "", ErrClinicIDNotFound
	}
	return clinicID, nil
}

// MustFromContext extracts the clinic ID from the context or panics
func MustFromContext(ctx context.Context) string {
	clinicID, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return clinicID
}

// WithRunID tags the context with the ID of the current provisioning run
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the provisioning run ID from the context
func RunIDFromContext(ctx context.Context) (string, error) {
	runID, ok := ctx.Value(runIDKey).(string)
	if !ok || runID == "" {
		return "", ErrRunIDNotFound
	}
	return runID, nil
}
