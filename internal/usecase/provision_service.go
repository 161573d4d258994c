package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/catalog"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/credentials"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/notify"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/observer"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/tenant"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/utils"
)

// clinicTask is the unit of work handed to the worker pool.
type clinicTask struct {
	ctx    context.Context
	index  int
	clinic string
}

// ProvisionService provisions every configured clinic.
type ProvisionService struct {
	cfg        *config.Config
	publisher  notify.Publisher
	hasher     *credentials.Hasher
	baseLogger *zap.Logger
}

// NewProvisionService creates a new provision service. publisher may be nil.
func NewProvisionService(cfg *config.Config, publisher notify.Publisher, hasher *credentials.Hasher, baseLogger *zap.Logger) *ProvisionService {
	if hasher == nil {
		hasher = credentials.NewHasher(0)
	}
	return &ProvisionService{
		cfg:        cfg,
		publisher:  publisher,
		hasher:     hasher,
		baseLogger: baseLogger.Named("provision_service"),
	}
}

// ProvisionAll runs the clinic plan against every configured clinic. Clinics
// are independent: a failure in one does not stop the others. The returned
// error combines the failures of all clinics.
func (s *ProvisionService) ProvisionAll(ctx context.Context) ([]*provisioner.Report, error) {
	if _, err := tenant.RunIDFromContext(ctx); err != nil {
		ctx = tenant.WithRunID(ctx, uuid.NewString())
	}
	log := logger.FromContextOr(ctx, s.baseLogger)

	opts, err := s.catalogOptions(ctx)
	if err != nil {
		return nil, err
	}

	clinics := s.cfg.Clinics
	reports := make([]*provisioner.Report, len(clinics))
	errs := make([]error, len(clinics))

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(s.workers(), func(i interface{}) {
		task, ok := i.(clinicTask)
		if !ok {
			s.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		defer wg.Done()

		run := utils.WrapWithContextRecovery(func(ctx context.Context) error {
			report, err := s.provisionClinic(ctx, task.clinic, opts)
			reports[task.index] = report
			return err
		})
		errs[task.index] = run(task.ctx)
	},
		ants.WithNonblocking(false),
		ants.WithLogger(newAntsLoggerAdapter(s.baseLogger.Named("ants_pool"))),
		ants.WithPanicHandler(func(p interface{}) {
			s.baseLogger.Error("Panic recovered in provisioning worker", zap.Any("panic_error", p), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioning worker pool: %w", err)
	}
	defer pool.Release()

	log.Info("Provisioning clinics", zap.Strings("clinics", clinics), zap.Int("workers", s.workers()))

	for i, clinic := range clinics {
		wg.Add(1)
		task := clinicTask{ctx: tenant.WithClinicID(ctx, clinic), index: i, clinic: clinic}
		if err := pool.Invoke(task); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("failed to submit clinic %s: %w", clinic, err)
		}
	}
	wg.Wait()

	if err := observer.Push(ctx, s.cfg.Metrics.PushgatewayURL, s.cfg.Metrics.Job); err != nil {
		log.Warn("Failed to push metrics", zap.Error(err))
	}

	var done []*provisioner.Report
	for _, r := range reports {
		if r != nil {
			done = append(done, r)
		}
	}
	return done, multierr.Combine(errs...)
}

// provisionClinic opens one clinic's store, runs the plan and closes the store
// on every path.
func (s *ProvisionService) provisionClinic(ctx context.Context, clinic string, opts catalog.Options) (report *provisioner.Report, err error) {
	log := logger.FromContextOr(ctx, s.baseLogger).With(zap.String("clinic", clinic))
	start := time.Now()

	store, err := storage.Open(ctx, s.cfg.Database, clinic)
	observer.ObserveStoreOperation("open", clinic, time.Since(start), err)
	if err != nil {
		observer.ObserveRun(clinic, observer.ResultResource, time.Since(start), utils.Now())
		log.Error("Failed to open clinic store", zap.Error(err))
		return nil, err
	}
	defer func() {
		closeStart := time.Now()
		closeErr := store.Close(ctx)
		observer.ObserveStoreOperation("close", clinic, time.Since(closeStart), closeErr)
		if closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
	}()

	plan, err := catalog.Build(opts)
	if err != nil {
		return nil, err
	}

	report, err = provisioner.New(store).Run(ctx, plan)
	for _, o := range report.Outcomes {
		observer.ObserveStep(clinic, string(o.Kind), string(o.Status), o.Duration)
	}

	result := observer.ResultSuccess
	if err != nil {
		result = observer.ResultFatal
	}
	observer.ObserveRun(clinic, result, time.Since(start), report.FinishedAt)

	counts := report.Counts()
	log.Info("Clinic provisioned",
		zap.String("result", result),
		zap.String("location", report.Location),
		zap.Int("changed", report.Changed()),
		zap.Int("already_exists", counts[provisioner.StatusAlreadyExists]),
		zap.Int("skipped", counts[provisioner.StatusSkipped]),
	)

	s.publish(ctx, report)
	return report, err
}

func (s *ProvisionService) publish(ctx context.Context, report *provisioner.Report) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishReport(ctx, report)
	observer.IncNotification(err)
	if err != nil {
		logger.FromContextOr(ctx, s.baseLogger).Warn("Failed to publish run report", zap.String("clinic", report.Clinic), zap.Error(err))
	}
}

// catalogOptions hashes the configured admin password once for all clinics.
func (s *ProvisionService) catalogOptions(ctx context.Context) (catalog.Options, error) {
	opts := catalog.Options{
		AdminEmail:  s.cfg.Seed.AdminEmail,
		DemoContact: s.cfg.Seed.DemoContact,
	}
	if s.cfg.Seed.AdminPassword == "" {
		logger.FromContextOr(ctx, s.baseLogger).Warn("No admin password configured, admin seed row is skipped",
			zap.String("admin_email", s.cfg.Seed.AdminEmail))
		return opts, nil
	}

	hash, err := s.hasher.Hash(s.cfg.Seed.AdminPassword)
	if err != nil {
		return opts, fmt.Errorf("%w: seed admin password: %w", apperrors.ErrConfig, err)
	}
	opts.AdminPasswordHash = hash
	return opts, nil
}

func (s *ProvisionService) workers() int {
	if s.cfg.Workers < 1 {
		return 1
	}
	return s.cfg.Workers
}

// antsLoggerAdapter routes ants pool logs to zap.
type antsLoggerAdapter struct {
	logger *zap.Logger
}

func newAntsLoggerAdapter(logger *zap.Logger) *antsLoggerAdapter {
	return &antsLoggerAdapter{logger: logger}
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
