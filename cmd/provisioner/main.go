package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/notify"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/observer"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/tenant"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/usecase"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

const (
	cmdProvision  = "provision"
	cmdReset      = "reset"
	cmdResetAdmin = "reset-admin"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Set timezone to UTC
	time.Local = time.UTC

	command := cmdProvision
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	flags := newFlagSet(command)
	if flags == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q, expected one of: %s, %s, %s\n", command, cmdProvision, cmdReset, cmdResetAdmin)
		return usecase.ExitUsage
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return usecase.ExitOK
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return usecase.ExitUsage
	}

	// Load configuration
	configPath, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return usecase.ExitUsage
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return usecase.ExitUsage
	}
	defer logger.Sync()

	observer.InitMetrics(cfg.Metrics.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = tenant.WithRunID(ctx, runID)
	log := logger.Log.With(zap.String("run_id", runID), zap.String("command", command))

	log.Info("Starting clinic schema provisioner",
		zap.String("environment", cfg.Environment),
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("clinics", cfg.Clinics),
	)

	switch command {
	case cmdReset:
		yes, _ := flags.GetBool("yes")
		err = usecase.NewResetService(cfg, logger.Log).Reset(ctx, yes)
	case cmdResetAdmin:
		err = resetAdmin(ctx, cfg, flags, log)
	default:
		err = provision(ctx, cfg, log)
	}

	code := usecase.ExitCode(err)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			log.Error("Command failed", zap.Error(e))
		}
	}
	log.Info("Clinic schema provisioner finished", zap.Int("exit_code", code))
	return code
}

func provision(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var publisher notify.Publisher
	if cfg.Notify.NatsURL != "" {
		p, err := notify.NewNATSPublisher(cfg.Notify.NatsURL, cfg.Notify.Subject, cfg.Notify.Timeout)
		if err != nil {
			// Reports are informational; provisioning goes on without them
			log.Warn("Run reports will not be published", zap.Error(err))
		} else {
			publisher = p
			defer p.Close()
		}
	}

	reports, err := usecase.NewProvisionService(cfg, publisher, nil, logger.Log).ProvisionAll(ctx)
	for _, r := range reports {
		counts := r.Counts()
		log.Info("Clinic run summary",
			zap.String("clinic", r.Clinic),
			zap.String("location", r.Location),
			zap.Int("changed", r.Changed()),
			zap.Int("already_exists", counts[provisioner.StatusAlreadyExists]),
			zap.Int("failed", counts[provisioner.StatusFailed]),
			zap.Int("skipped", counts[provisioner.StatusSkipped]),
			zap.Duration("duration", r.Duration()),
		)
	}
	return err
}

func resetAdmin(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet, log *zap.Logger) error {
	email, _ := flags.GetString("email")
	if email == "" {
		email = cfg.Seed.AdminEmail
	}
	password, _ := flags.GetString("password")
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}

	svc := usecase.NewAdminService(cfg, nil, logger.Log)
	var errs error
	for _, clinic := range cfg.Clinics {
		created, err := svc.ResetAdmin(ctx, clinic, email, password)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clinic %s: %w", clinic, err))
			continue
		}
		log.Info("Admin password reset", zap.String("clinic", clinic), zap.String("email", email), zap.Bool("created", created))
	}
	return errs
}

func newFlagSet(command string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(command, pflag.ContinueOnError)
	flags.String("config", "", "directory containing provisioner.yaml")
	flags.String("driver", "", "store driver: postgres or sqlite")
	flags.String("dsn", "", "PostgreSQL connection string")
	flags.String("sqlite-dir", "", "directory holding per-clinic SQLite files")
	flags.StringSlice("clinic", nil, "clinic id to act on, repeatable")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: json or console")

	switch command {
	case cmdProvision:
		flags.Int("workers", 1, "number of clinics provisioned concurrently")
		flags.Bool("demo-contact", false, "seed a demo patient contact")
	case cmdReset:
		flags.Bool("yes", false, "confirm destruction of every selected clinic store")
	case cmdResetAdmin:
		flags.String("email", "", "admin email, defaults to seed.adminEmail")
		flags.String("password", "", "new admin password, or set ADMIN_PASSWORD")
	default:
		return nil
	}
	return flags
}
