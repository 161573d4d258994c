package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

// Dialect identifies the SQL flavour spoken by the store
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Store is one clinic's relational store. It is held for the duration of a
// provisioning run and must be closed on every exit path.
type Store struct {
	db      *gorm.DB
	dialect Dialect
	schema  string // PostgreSQL schema holding the clinic's tables
	path    string // SQLite file backing the clinic's tables
}

// New wraps an already opened gorm handle. schema is ignored for SQLite.
func New(db *gorm.DB, dialect Dialect, schema string) *Store {
	return &Store{db: db, dialect: dialect, schema: schema}
}

// Open connects to the store that holds clinic's tables, retrying transient
// connection failures. Any failure is returned as a ResourceError.
// The clinic's PostgreSQL schema or SQLite file is created when missing.
func Open(ctx context.Context, cfg config.DatabaseConfig, clinic string) (*Store, error) {
	return open(ctx, cfg, clinic, true)
}

// OpenExisting connects like Open but never creates the clinic's schema or
// SQLite file. A missing SQLite file is reported as ErrNotFound; a missing
// PostgreSQL schema simply has no tables.
func OpenExisting(ctx context.Context, cfg config.DatabaseConfig, clinic string) (*Store, error) {
	return open(ctx, cfg, clinic, false)
}

func open(ctx context.Context, cfg config.DatabaseConfig, clinic string, create bool) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, clinic, create)
	case config.DriverSQLite:
		return openSQLite(ctx, cfg, clinic, create)
	default:
		return nil, apperrors.NewResource("open", clinic, apperrors.ErrConfig, "unsupported driver %q", cfg.Driver)
	}
}

// DB exposes the gorm handle for row-level work.
func (s *Store) DB() *gorm.DB { return s.db }

// Dialect returns the SQL flavour of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

// Schema returns the PostgreSQL schema; empty for SQLite.
func (s *Store) Schema() string { return s.schema }

// Location describes where the clinic's tables live, for logs and reports.
func (s *Store) Location() string {
	if s.dialect == SQLite {
		return s.path
	}
	return s.schema
}

// QuoteIdent quotes a single SQL identifier. Both dialects use double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Qualify returns the quoted, schema-qualified table name.
func (s *Store) Qualify(table string) string {
	if s.dialect == Postgres && s.schema != "" {
		return QuoteIdent(s.schema) + "." + QuoteIdent(table)
	}
	return QuoteIdent(table)
}

// ColumnType maps a logical column type to the store's native type.
// Unknown types are passed through unchanged.
func (s *Store) ColumnType(logical string) string {
	key := strings.ToLower(strings.TrimSpace(logical))
	if s.dialect == Postgres {
		if t, ok := postgresTypes[key]; ok {
			return t
		}
	} else {
		if t, ok := sqliteTypes[key]; ok {
			return t
		}
	}
	return logical
}

var postgresTypes = map[string]string{
	"text":      "TEXT",
	"integer":   "INTEGER",
	"bigint":    "BIGINT",
	"boolean":   "BOOLEAN",
	"real":      "DOUBLE PRECISION",
	"date":      "DATE",
	"timestamp": "TIMESTAMPTZ",
	"json":      "JSONB",
}

var sqliteTypes = map[string]string{
	"text":      "TEXT",
	"integer":   "INTEGER",
	"bigint":    "INTEGER",
	"boolean":   "BOOLEAN",
	"real":      "REAL",
	"date":      "DATE",
	"timestamp": "TIMESTAMP",
	"json":      "TEXT",
}

// Exec runs a single statement and returns the number of affected rows.
// The store auto-commits, so a successful statement is durable on return.
func (s *Store) Exec(ctx context.Context, stmt string, args ...interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Exec(stmt, args...)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// TableExists reports whether table exists in the clinic's schema.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var count int64
	var err error
	if s.dialect == Postgres {
		err = s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
			s.schema, table,
		).Scan(&count).Error
	} else {
		err = s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
			table,
		).Scan(&count).Error
	}
	if err != nil {
		return false, fmt.Errorf("failed to check if table %s exists in %s: %w", table, s.Location(), err)
	}
	return count > 0, nil
}

// ColumnExists reports whether table already has column.
func (s *Store) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	var count int64
	var err error
	if s.dialect == Postgres {
		err = s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = ? AND table_name = ? AND column_name = ?`,
			s.schema, table, column,
		).Scan(&count).Error
	} else {
		// pragma_table_info takes the table name as a literal
		err = s.db.WithContext(ctx).Raw(
			fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info(%s) WHERE name = ?`, quoteLiteral(table)),
			column,
		).Scan(&count).Error
	}
	if err != nil {
		return false, fmt.Errorf("failed to check if column %s.%s exists in %s: %w", table, column, s.Location(), err)
	}
	return count > 0, nil
}

// IndexExists reports whether an index named index exists in the clinic's schema.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	var count int64
	var err error
	if s.dialect == Postgres {
		err = s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM pg_indexes WHERE schemaname = ? AND indexname = ?`,
			s.schema, index,
		).Scan(&count).Error
	} else {
		err = s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`,
			index,
		).Scan(&count).Error
	}
	if err != nil {
		return false, fmt.Errorf("failed to check if index %s exists in %s: %w", index, s.Location(), err)
	}
	return count > 0, nil
}

// Close releases the database connection.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.NewResource("close", s.Location(), err, "failed to get underlying SQL DB")
	}

	if closeErr := sqlDB.Close(); closeErr != nil {
		logger.FromContext(ctx).Error("Failed to close database connection", zap.String("location", s.Location()), zap.Error(closeErr))
		return apperrors.NewResource("close", s.Location(), closeErr, "failed to close SQL DB")
	}

	logger.FromContext(ctx).Debug("Database connection closed", zap.String("location", s.Location()))
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
