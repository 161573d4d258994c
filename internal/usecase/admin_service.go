package usecase

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/credentials"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/observer"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/tenant"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

// AdminService repairs the admin login of an already provisioned clinic.
type AdminService struct {
	cfg        *config.Config
	hasher     *credentials.Hasher
	baseLogger *zap.Logger
}

// NewAdminService creates a new admin service. A nil hasher uses the default bcrypt cost.
func NewAdminService(cfg *config.Config, hasher *credentials.Hasher, baseLogger *zap.Logger) *AdminService {
	if hasher == nil {
		hasher = credentials.NewHasher(0)
	}
	return &AdminService{cfg: cfg, hasher: hasher, baseLogger: baseLogger.Named("admin_service")}
}

// ResetAdmin sets the admin password for clinic, creating the admin row when
// missing. It reports whether a row was created.
func (s *AdminService) ResetAdmin(ctx context.Context, clinic, email, password string) (created bool, err error) {
	ctx = tenant.WithClinicID(ctx, clinic)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	start := time.Now()
	store, err := storage.OpenExisting(ctx, s.cfg.Database, clinic)
	observer.ObserveStoreOperation("open", clinic, time.Since(start), err)
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := store.Close(ctx); closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
	}()

	created, err = credentials.UpsertAdmin(ctx, store, email, hash)
	if err != nil {
		logger.FromContextOr(ctx, s.baseLogger).Error("Failed to reset admin credentials",
			zap.String("clinic", clinic), zap.String("email", email), zap.Error(err))
		return false, err
	}
	return created, nil
}
