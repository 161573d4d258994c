//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgtc "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres starts a PostgreSQL container and returns its host-accessible DSN.
func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := pgtc.Run(ctx,
		"postgres:17-bookworm",
		pgtc.WithDatabase("clinic_crm"),
		pgtc.WithUsername("postgres"),
		pgtc.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return pgContainer, "", fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}
	return pgContainer, dsn, nil
}

func openSQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	ctxConnect, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxConnect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return db, nil
}

// dropClinicSchemas removes every schema whose name starts with prefix.
func dropClinicSchemas(ctx context.Context, dsn, prefix string) error {
	db, err := openSQL(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE $1`, prefix+"%")
	if err != nil {
		return fmt.Errorf("failed to list schemas: %w", err)
	}
	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		schemas = append(schemas, name)
	}
	rows.Close()

	for _, name := range schemas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, strings.ReplaceAll(name, `"`, `""`))); err != nil {
			return fmt.Errorf("failed to drop schema %s: %w", name, err)
		}
	}
	return nil
}

// execSQL runs statements directly, bypassing the provisioner.
func execSQL(ctx context.Context, dsn string, statements ...string) error {
	db, err := openSQL(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

// queryInt runs a single-value query and returns the result.
func queryInt(ctx context.Context, dsn, query string, args ...interface{}) (int, error) {
	db, err := openSQL(ctx, dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", query, err)
	}
	return n, nil
}

// queryString runs a single-value query and returns the result.
func queryString(ctx context.Context, dsn, query string, args ...interface{}) (string, error) {
	db, err := openSQL(ctx, dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var s string
	if err := db.QueryRowContext(ctx, query, args...).Scan(&s); err != nil {
		return "", fmt.Errorf("failed to query %q: %w", query, err)
	}
	return s, nil
}
