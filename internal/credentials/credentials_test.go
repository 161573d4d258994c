package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/catalog"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/model"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

func openStore(t *testing.T, provision bool) (context.Context, *storage.Store) {
	t.Helper()
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	store, err := storage.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, SQLiteDir: t.TempDir()}, "main")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	if provision {
		plan, err := catalog.Build(catalog.Options{})
		require.NoError(t, err)
		_, err = provisioner.New(store).Run(ctx, plan)
		require.NoError(t, err)
	}
	return ctx, store
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, Verify(hash, "correct horse"))
	assert.False(t, Verify(hash, "wrong horse"))

	_, err = h.Hash("short")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestNewHasher_DefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
}

func TestUpsertAdmin(t *testing.T) {
	ctx, store := openStore(t, true)
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("first-password")
	require.NoError(t, err)
	created, err := UpsertAdmin(ctx, store, "admin@clinic.local", first)
	require.NoError(t, err)
	assert.True(t, created)

	user, err := FindUser(ctx, store, "admin@clinic.local")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.Equal(t, catalog.SeedID(catalog.TableUsers, "admin@clinic.local"), user.ID)
	assert.True(t, Verify(user.PasswordHash, "first-password"))

	second, err := h.Hash("second-password")
	require.NoError(t, err)
	created, err = UpsertAdmin(ctx, store, "admin@clinic.local", second)
	require.NoError(t, err)
	assert.False(t, created)

	user, err = FindUser(ctx, store, "admin@clinic.local")
	require.NoError(t, err)
	assert.True(t, Verify(user.PasswordHash, "second-password"))
	assert.False(t, Verify(user.PasswordHash, "first-password"))
}

func TestUpsertAdmin_PromotesExistingStaff(t *testing.T) {
	ctx, store := openStore(t, true)

	_, err := store.Exec(ctx, `INSERT INTO users (id, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		"staff-1", "nurse@clinic.local", "$2a$04$old", model.RoleStaff)
	require.NoError(t, err)

	created, err := UpsertAdmin(ctx, store, "nurse@clinic.local", "$2a$04$new")
	require.NoError(t, err)
	assert.False(t, created)

	user, err := FindUser(ctx, store, "nurse@clinic.local")
	require.NoError(t, err)
	assert.Equal(t, "staff-1", user.ID)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.Equal(t, "$2a$04$new", user.PasswordHash)
}

func TestUpsertAdmin_RequiresProvisionedStore(t *testing.T) {
	ctx, store := openStore(t, false)

	_, err := UpsertAdmin(ctx, store, "admin@clinic.local", "$2a$04$hash")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestUpsertAdmin_InvalidEmail(t *testing.T) {
	ctx, store := openStore(t, true)

	_, err := UpsertAdmin(ctx, store, "not-an-email", "$2a$04$hash")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestFindUser_NotFound(t *testing.T) {
	ctx, store := openStore(t, true)

	_, err := FindUser(ctx, store, "nobody@clinic.local")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}
