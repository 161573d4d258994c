package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" database/sql driver

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

const sqliteDriverName = "sqlite"

// SQLitePath returns the file holding a clinic's tables.
func SQLitePath(dir, clinic string) string {
	return filepath.Join(dir, clinic+".db")
}

func sqliteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, clinic string, create bool) (*Store, error) {
	path := SQLitePath(cfg.SQLiteDir, clinic)

	if !create {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: sqlite store %s, run provision first", apperrors.ErrNotFound, path)
			}
			return nil, apperrors.NewResource("open", path, err, "failed to stat sqlite store")
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.NewResource("open", path, err, "creating database directory")
	}

	db, err := connectWithRetry(ctx, cfg.ConnectTimeout, path, func() (*gorm.DB, error) {
		return gorm.Open(sqlite.New(sqlite.Config{
			DriverName: sqliteDriverName,
			DSN:        sqliteDSN(path),
		}), &gorm.Config{
			NamingStrategy:         schema.NamingStrategy{SingularTable: true},
			Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
			SkipDefaultTransaction: true,
		})
	})
	if err != nil {
		return nil, apperrors.NewResource("open", path, err, "failed to open sqlite store")
	}

	store := New(db, SQLite, "")
	store.path = path

	logger.FromContext(ctx).Debug("SQLite store opened", zap.String("path", path))
	return store, nil
}

// RemoveSQLiteFiles deletes a SQLite store together with its WAL and shared
// memory files. It reports whether the main file existed.
func RemoveSQLiteFiles(path string) (bool, error) {
	existed := true
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("stat %s: %w", path, err)
		}
		existed = false
	}

	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return existed, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return existed, nil
}
