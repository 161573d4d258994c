package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SchemaErrorKind is the outcome of classifying a failed schema statement.
type SchemaErrorKind int

const (
	// NoError means there was nothing to classify.
	NoError SchemaErrorKind = iota
	// DuplicateColumn means an ADD COLUMN hit a column that already exists.
	DuplicateColumn
	// DuplicateObject means a table, index or schema already exists, including
	// the catalog races of concurrent IF NOT EXISTS statements.
	DuplicateObject
	// Fatal is any other failure.
	Fatal
)

// String implements fmt.Stringer.
func (k SchemaErrorKind) String() string {
	switch k {
	case NoError:
		return "none"
	case DuplicateColumn:
		return "duplicate_column"
	case DuplicateObject:
		return "duplicate_object"
	default:
		return "fatal"
	}
}

// Benign reports whether the kind means the statement was already applied.
func (k SchemaErrorKind) Benign() bool {
	return k == DuplicateColumn || k == DuplicateObject
}

// PostgreSQL SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgDuplicateColumn = "42701"
	pgDuplicateTable  = "42P07"
	pgDuplicateSchema = "42P06"
	pgDuplicateObject = "42710"
	pgUniqueViolation = "23505"
)

// Concurrent CREATE ... IF NOT EXISTS can lose the race on these system
// catalog indexes instead of reporting a duplicate object.
var pgCatalogRaceConstraints = map[string]bool{
	"pg_type_typname_nsp_index":       true,
	"pg_namespace_nspname_index":      true,
	"pg_class_relname_nsp_index":      true,
	"pg_attribute_relid_attnam_index": true,
}

// sqliteConflictMessages are matched against SQLite error text. SQLite reports
// these conditions with the generic SQLITE_ERROR code only.
var sqliteConflictMessages = []struct {
	fragment string
	kind     SchemaErrorKind
}{
	{"duplicate column name", DuplicateColumn},
	{"already exists", DuplicateObject},
}

// ClassifySchemaError decides whether a failed schema statement was already
// applied. Structured PostgreSQL error codes are used when present; message
// matching is only a compatibility path for drivers that expose no code.
func ClassifySchemaError(err error) SchemaErrorKind {
	if err == nil {
		return NoError
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDuplicateColumn:
			return DuplicateColumn
		case pgDuplicateTable, pgDuplicateSchema, pgDuplicateObject:
			return DuplicateObject
		case pgUniqueViolation:
			if pgCatalogRaceConstraints[pgErr.ConstraintName] {
				return DuplicateObject
			}
		}
		return Fatal
	}

	var liteErr *moderncsqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() != sqlite3.SQLITE_ERROR {
		return Fatal
	}

	return classifyByMessage(err.Error())
}

func classifyByMessage(msg string) SchemaErrorKind {
	lower := strings.ToLower(msg)
	for _, m := range sqliteConflictMessages {
		if strings.Contains(lower, m.fragment) {
			return m.kind
		}
	}
	return Fatal
}

// IsTransientError checks if the error suggests a temporary issue like a network problem.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception
		// Class 53: insufficient resources
		// 57P03: cannot_connect_now
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			pgErr.Code == "57P03"
	}

	var liteErr *moderncsqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}

	errStr := strings.ToLower(err.Error())
	transientIndicators := []string{
		"connection refused",
		"network is unreachable",
		"i/o timeout",
		"broken pipe",
		"connection reset by peer",
		"could not translate host name",
		"no route to host",
		"the database system is starting up",
		"connection timed out",
		"connection reset",
	}
	for _, indicator := range transientIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}
