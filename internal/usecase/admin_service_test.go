package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/credentials"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/model"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
)

func TestResetAdmin(t *testing.T) {
	cfg := newTestConfig(t, "main")
	_, err := NewProvisionService(cfg, nil, testHasher(), zaptest.NewLogger(t)).ProvisionAll(context.Background())
	require.NoError(t, err)

	svc := NewAdminService(cfg, testHasher(), zaptest.NewLogger(t))

	created, err := svc.ResetAdmin(context.Background(), "main", "admin@clinic.local", "brand-new-password")
	require.NoError(t, err)
	assert.False(t, created, "seeded admin is updated in place")

	created, err = svc.ResetAdmin(context.Background(), "main", "frontdesk@clinic.local", "another-password")
	require.NoError(t, err)
	assert.True(t, created)

	store := openClinicStore(t, cfg, "main")
	admin, err := credentials.FindUser(context.Background(), store, "admin@clinic.local")
	require.NoError(t, err)
	assert.True(t, credentials.Verify(admin.PasswordHash, "brand-new-password"))
	assert.False(t, credentials.Verify(admin.PasswordHash, "s3cret-passw0rd"))

	frontdesk, err := credentials.FindUser(context.Background(), store, "frontdesk@clinic.local")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, frontdesk.Role)
}

func TestResetAdmin_NotProvisioned(t *testing.T) {
	cfg := newTestConfig(t, "main")

	_, err := NewAdminService(cfg, testHasher(), zaptest.NewLogger(t)).
		ResetAdmin(context.Background(), "main", "admin@clinic.local", "brand-new-password")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.NoFileExists(t, storage.SQLitePath(cfg.Database.SQLiteDir, "main"))
}

func TestResetAdmin_WeakPassword(t *testing.T) {
	cfg := newTestConfig(t, "main")

	_, err := NewAdminService(cfg, testHasher(), zaptest.NewLogger(t)).
		ResetAdmin(context.Background(), "main", "admin@clinic.local", "short")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Equal(t, ExitUsage, ExitCode(err))
}
