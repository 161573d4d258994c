package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

const (
	defaultConnectInitialInterval = 1 * time.Second
	defaultConnectMaxInterval     = 15 * time.Second
	defaultConnectMaxElapsedTime  = 1 * time.Minute
)

// SchemaName returns the PostgreSQL schema holding a clinic's tables.
func SchemaName(prefix, clinic string) string {
	return prefix + clinic
}

// tenantNamer qualifies gorm model tables with the clinic's schema.
type tenantNamer struct {
	schema.NamingStrategy
	schemaName string
}

// TableName implements the schema.Namer interface, overriding the default.
func (tn tenantNamer) TableName(table string) string {
	return QuoteIdent(tn.schemaName) + "." + QuoteIdent(table)
}

// newConnectPolicy builds the exponential backoff used while acquiring a connection.
func newConnectPolicy(ctx context.Context, maxElapsed time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultConnectInitialInterval
	b.MaxInterval = defaultConnectMaxInterval
	b.MaxElapsedTime = maxElapsed
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = defaultConnectMaxElapsedTime
	}
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// connectWithRetry retries open until it succeeds, fails permanently or the policy gives up.
func connectWithRetry(ctx context.Context, maxElapsed time.Duration, target string, open func() (*gorm.DB, error)) (*gorm.DB, error) {
	operation := func() (*gorm.DB, error) {
		db, err := open()
		if err != nil {
			if IsTransientError(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return db, nil
	}

	notify := func(err error, d time.Duration) {
		logger.FromContext(ctx).Warn("Retrying database connection", zap.String("target", target), zap.Error(err), zap.Duration("after", d))
	}

	return backoff.RetryNotifyWithData(operation, newConnectPolicy(ctx, maxElapsed), notify)
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, clinic string, create bool) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, apperrors.NewResource("open", clinic, apperrors.ErrConfig, "postgres DSN is required")
	}
	schemaName := SchemaName(cfg.SchemaPrefix, clinic)

	db, err := connectWithRetry(ctx, cfg.ConnectTimeout, schemaName, func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
			NamingStrategy:         tenantNamer{NamingStrategy: schema.NamingStrategy{SingularTable: true}, schemaName: schemaName},
			Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
			SkipDefaultTransaction: true,
		})
	})
	if err != nil {
		return nil, apperrors.NewResource("open", schemaName, err, "failed to connect to postgres")
	}

	store := New(db, Postgres, schemaName)
	if !create {
		return store, nil
	}

	logger.FromContext(ctx).Info("Ensuring PostgreSQL schema exists", zap.String("schema", schemaName))
	if _, err := store.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdent(schemaName))); err != nil {
		if ClassifySchemaError(err) != DuplicateObject {
			_ = store.Close(ctx)
			return nil, apperrors.NewResource("open", schemaName, err, "failed to create schema %s", schemaName)
		}
	}

	return store, nil
}

// DropSchema removes the clinic's schema and every object in it.
// Only the explicit reset command calls this.
func (s *Store) DropSchema(ctx context.Context) error {
	if s.dialect != Postgres {
		return fmt.Errorf("%w: drop schema is only supported on postgres", apperrors.ErrDatabase)
	}
	stmt := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", QuoteIdent(s.schema))
	if _, err := s.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%w: failed to drop schema %s: %w", apperrors.ErrDatabase, s.schema, err)
	}
	logger.FromContext(ctx).Warn("Dropped clinic schema", zap.String("schema", s.schema))
	return nil
}
