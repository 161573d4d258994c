package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/observer"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/tenant"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

// ResetService destroys clinic stores. It is only reachable through the
// explicit reset command and never runs as part of provisioning.
type ResetService struct {
	cfg        *config.Config
	baseLogger *zap.Logger
}

// NewResetService creates a new reset service.
func NewResetService(cfg *config.Config, baseLogger *zap.Logger) *ResetService {
	return &ResetService{cfg: cfg, baseLogger: baseLogger.Named("reset_service")}
}

// Reset removes every configured clinic's store. confirmed must be true.
func (s *ResetService) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("%w: pass --yes to reset %d clinic store(s)", apperrors.ErrConfirmationRequired, len(s.cfg.Clinics))
	}

	var errs error
	for _, clinic := range s.cfg.Clinics {
		errs = multierr.Append(errs, s.resetClinic(tenant.WithClinicID(ctx, clinic), clinic))
	}
	return errs
}

func (s *ResetService) resetClinic(ctx context.Context, clinic string) (err error) {
	log := logger.FromContextOr(ctx, s.baseLogger).With(zap.String("clinic", clinic))

	if s.cfg.Database.Driver == config.DriverSQLite {
		path := storage.SQLitePath(s.cfg.Database.SQLiteDir, clinic)
		existed, err := storage.RemoveSQLiteFiles(path)
		if err != nil {
			return apperrors.NewResource("reset", path, err, "failed to remove sqlite store")
		}
		log.Warn("Removed clinic store", zap.String("path", path), zap.Bool("existed", existed))
		return nil
	}

	start := time.Now()
	store, err := storage.OpenExisting(ctx, s.cfg.Database, clinic)
	observer.ObserveStoreOperation("open", clinic, time.Since(start), err)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(ctx); closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
	}()

	return store.DropSchema(ctx)
}
