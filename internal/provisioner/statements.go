package provisioner

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/utils"
)

// renderer is the dialect knowledge statements need.
type renderer interface {
	Qualify(table string) string
	ColumnType(logical string) string
}

func columnDef(r renderer, c Column) string {
	var b strings.Builder
	b.WriteString(storage.QuoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(r.ColumnType(c.Type))
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(literal(c.Default))
	}
	return b.String()
}

func createTableSQL(r renderer, spec TableSpec) string {
	parts := make([]string, 0, len(spec.Columns)+len(spec.ForeignKeys))
	for _, c := range spec.Columns {
		parts = append(parts, columnDef(r, c))
	}
	for _, fk := range spec.ForeignKeys {
		ref := fk.RefColumn
		if ref == "" {
			ref = "id"
		}
		clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			storage.QuoteIdent(fk.Column), r.Qualify(fk.RefTable), storage.QuoteIdent(ref))
		if fk.OnDelete != "" {
			clause += " ON DELETE " + strings.ToUpper(fk.OnDelete)
		}
		parts = append(parts, clause)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", r.Qualify(spec.Name), strings.Join(parts, ", "))
}

func addColumnSQL(r renderer, table string, c Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", r.Qualify(table), columnDef(r, c))
}

func createIndexSQL(r renderer, spec IndexSpec) string {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = storage.QuoteIdent(c)
	}
	unique := ""
	if spec.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, storage.QuoteIdent(spec.Name), r.Qualify(spec.Table), strings.Join(cols, ", "))
}

// insertIgnoreSQL builds an insert that leaves any conflicting row untouched.
func insertIgnoreSQL(r renderer, table string, row Row) (string, []interface{}) {
	cols := row.Columns()
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		quoted[i] = storage.QuoteIdent(c)
		marks[i] = "?"
		args[i] = row[c]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		r.Qualify(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	return stmt, args
}

// literal renders a default value as SQL.
func literal(v interface{}) string {
	switch val := v.(type) {
	case Expr:
		return string(val)
	case string:
		return quote(val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return quote(string(utils.MustMarshalJSON(val)))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
