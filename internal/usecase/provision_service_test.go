package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	zapobserver "go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/catalog"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/credentials"
	notifymock "gitlab.com/timkado/api/clinic-schema-provisioner/internal/notify/mock"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

func init() {
	// Silence the global logger; tests inject their own
	logger.Log = zap.NewNop()
}

func newTestConfig(t *testing.T, clinics ...string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		LogLevel:    "debug",
		LogFormat:   "console",
		Database: config.DatabaseConfig{
			Driver:    config.DriverSQLite,
			SQLiteDir: t.TempDir(),
		},
		Clinics: clinics,
		Workers: 2,
		Seed: config.SeedConfig{
			AdminEmail:    "admin@clinic.local",
			AdminPassword: "s3cret-passw0rd",
		},
	}
	cfg.Metrics.Job = "clinic_schema_provisioner_test"
	cfg.Notify.Subject = "clinic.provisioning.completed"
	return cfg
}

func testHasher() *credentials.Hasher {
	return credentials.NewHasher(bcrypt.MinCost)
}

func openClinicStore(t *testing.T, cfg *config.Config, clinic string) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), cfg.Database, clinic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestProvisionAll_FreshAndRepeated(t *testing.T) {
	cfg := newTestConfig(t, "north", "south")
	publisher := new(notifymock.PublisherMock)
	publisher.On("PublishReport", mock.Anything, mock.AnythingOfType("*provisioner.Report")).Return(nil)

	svc := NewProvisionService(cfg, publisher, testHasher(), zaptest.NewLogger(t))

	reports, err := svc.ProvisionAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.False(t, r.Failed())
		assert.Greater(t, r.Changed(), 0)
		assert.Equal(t, storage.SQLitePath(cfg.Database.SQLiteDir, r.Clinic), r.Location)
	}
	publisher.AssertNumberOfCalls(t, "PublishReport", 2)

	// Second run changes nothing
	reports, err = svc.ProvisionAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, 0, r.Changed())
		for _, o := range r.Outcomes {
			assert.Equal(t, provisioner.StatusAlreadyExists, o.Status, o.Step)
		}
	}
	publisher.AssertNumberOfCalls(t, "PublishReport", 4)

	for _, clinic := range cfg.Clinics {
		store := openClinicStore(t, cfg, clinic)
		user, err := credentials.FindUser(context.Background(), store, "admin@clinic.local")
		require.NoError(t, err)
		assert.True(t, credentials.Verify(user.PasswordHash, "s3cret-passw0rd"))
	}
}

func TestProvisionAll_NoPublisher(t *testing.T) {
	cfg := newTestConfig(t, "main")
	cfg.Workers = 0

	reports, err := NewProvisionService(cfg, nil, testHasher(), zaptest.NewLogger(t)).ProvisionAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "main", reports[0].Clinic)
}

func TestProvisionAll_PublishFailureIsNotFatal(t *testing.T) {
	cfg := newTestConfig(t, "main")
	publisher := new(notifymock.PublisherMock)
	publisher.On("PublishReport", mock.Anything, mock.Anything).Return(errors.New("nats unavailable"))

	core, logs := zapobserver.New(zapcore.WarnLevel)
	reports, err := NewProvisionService(cfg, publisher, testHasher(), zap.New(core)).ProvisionAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, logs.FilterMessage("Failed to publish run report").Len())
	publisher.AssertExpectations(t)
}

func TestProvisionAll_WithoutAdminPassword(t *testing.T) {
	cfg := newTestConfig(t, "main")
	cfg.Seed.AdminPassword = ""

	core, logs := zapobserver.New(zapcore.WarnLevel)
	reports, err := NewProvisionService(cfg, nil, testHasher(), zap.New(core)).ProvisionAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, logs.FilterMessage("No admin password configured, admin seed row is skipped").Len())

	store := openClinicStore(t, cfg, "main")
	var count int64
	require.NoError(t, store.DB().Table(catalog.TableUsers).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProvisionAll_WeakSeedPassword(t *testing.T) {
	cfg := newTestConfig(t, "main")
	cfg.Seed.AdminPassword = "short"

	reports, err := NewProvisionService(cfg, nil, testHasher(), zaptest.NewLogger(t)).ProvisionAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, reports)
	assert.True(t, apperrors.IsConfigError(err))
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestProvisionAll_ResourceError(t *testing.T) {
	cfg := newTestConfig(t, "main")
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.Database.SQLiteDir = blocker

	reports, err := NewProvisionService(cfg, nil, testHasher(), zaptest.NewLogger(t)).ProvisionAll(context.Background())
	require.Error(t, err)
	assert.Empty(t, reports)
	assert.True(t, apperrors.IsResourceError(err))
	assert.Equal(t, ExitResource, ExitCode(err))
}

func TestProvisionAll_FatalSchemaErrorIsolatedToClinic(t *testing.T) {
	cfg := newTestConfig(t, "broken", "healthy")

	// A legacy contacts table without a status column breaks the status index
	legacy := openClinicStore(t, cfg, "broken")
	_, err := legacy.Exec(context.Background(), `CREATE TABLE contacts (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close(context.Background()))

	publisher := new(notifymock.PublisherMock)
	publisher.On("PublishReport", mock.Anything, mock.Anything).Return(nil)

	reports, err := NewProvisionService(cfg, publisher, testHasher(), zaptest.NewLogger(t)).ProvisionAll(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsFatalSchemaError(err))
	assert.Equal(t, ExitFatalSchema, ExitCode(err))
	require.Len(t, reports, 2)
	publisher.AssertNumberOfCalls(t, "PublishReport", 2)

	byClinic := map[string]*provisioner.Report{}
	for _, r := range reports {
		byClinic[r.Clinic] = r
	}

	broken := byClinic["broken"]
	require.NotNil(t, broken)
	assert.True(t, broken.Failed())
	failed, ok := broken.Outcome("ensure_index:idx_contacts_status")
	require.True(t, ok)
	assert.Equal(t, provisioner.StatusFailed, failed.Status)
	assert.Contains(t, failed.Statement, "idx_contacts_status")
	applied, ok := broken.Outcome("ensure_column:contacts.pre_visit_status")
	require.True(t, ok)
	assert.Equal(t, provisioner.StatusApplied, applied.Status)
	assert.Greater(t, broken.Counts()[provisioner.StatusSkipped], 0)

	healthy := byClinic["healthy"]
	require.NotNil(t, healthy)
	assert.False(t, healthy.Failed())
}
