package provisioner

import (
	"fmt"
	"sort"
	"strings"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/validator"
)

// Expr is a raw SQL expression used as a column default, e.g. CURRENT_TIMESTAMP.
type Expr string

// CurrentTimestamp is the portable "now" default.
const CurrentTimestamp Expr = "CURRENT_TIMESTAMP"

// Column describes one column of a table.
// Type is a logical type (text, integer, bigint, boolean, real, date,
// timestamp, json) mapped per dialect; anything else is used verbatim.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	// Default is rendered as a SQL literal; nil means no default.
	Default interface{}
}

// ForeignKey declares that Column references RefTable(RefColumn).
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// TableSpec is the full shape of a table created when absent.
type TableSpec struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// IndexSpec describes a secondary index.
type IndexSpec struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// Row is a seed row keyed by column name.
type Row map[string]interface{}

// Columns returns the row's column names in a stable order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// StepKind names the operation a step performs.
type StepKind string

const (
	KindTable  StepKind = "table"
	KindColumn StepKind = "column"
	KindIndex  StepKind = "index"
	KindSeed   StepKind = "seed"
)

// Step is one idempotent operation of a plan.
type Step struct {
	Kind StepKind

	Table  TableSpec // KindTable
	Target string    // table name for KindColumn and KindSeed
	Column Column    // KindColumn
	Index  IndexSpec // KindIndex

	UniqueKey string // KindSeed
	Row       Row    // KindSeed
}

// Name identifies the step in logs and reports.
func (s Step) Name() string {
	switch s.Kind {
	case KindTable:
		return "ensure_table:" + s.Table.Name
	case KindColumn:
		return "ensure_column:" + s.Target + "." + s.Column.Name
	case KindIndex:
		return "ensure_index:" + s.Index.Name
	case KindSeed:
		return fmt.Sprintf("seed_row:%s[%s=%v]", s.Target, s.UniqueKey, s.Row[s.UniqueKey])
	default:
		return string(s.Kind)
	}
}

// TargetTable returns the table the step acts on.
func (s Step) TargetTable() string {
	switch s.Kind {
	case KindTable:
		return s.Table.Name
	case KindIndex:
		return s.Index.Table
	default:
		return s.Target
	}
}

// Plan is an ordered list of provisioning steps. Steps run in the order they
// were added, so parent tables must be added before the tables referencing them.
type Plan struct {
	steps []Step
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{}
}

// EnsureTable appends a create-if-absent table step.
func (p *Plan) EnsureTable(spec TableSpec) *Plan {
	p.steps = append(p.steps, Step{Kind: KindTable, Table: spec})
	return p
}

// EnsureColumn appends an additive column migration step.
func (p *Plan) EnsureColumn(table string, col Column) *Plan {
	p.steps = append(p.steps, Step{Kind: KindColumn, Target: table, Column: col})
	return p
}

// EnsureIndex appends a create-if-absent index step.
func (p *Plan) EnsureIndex(spec IndexSpec) *Plan {
	p.steps = append(p.steps, Step{Kind: KindIndex, Index: spec})
	return p
}

// SeedRow appends an insert-or-ignore step keyed by uniqueKey.
func (p *Plan) SeedRow(table, uniqueKey string, row Row) *Plan {
	p.steps = append(p.steps, Step{Kind: KindSeed, Target: table, UniqueKey: uniqueKey, Row: row})
	return p
}

// Steps returns a copy of the plan's steps in execution order.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.steps) }

// Validate checks identifiers, seed keys and foreign-key ordering: every
// referenced table must be ensured by an earlier step (or be the table itself).
func (p *Plan) Validate() error {
	var problems []string
	ensured := make(map[string]bool)
	seen := make(map[string]bool)

	for i, step := range p.steps {
		name := step.Name()
		if seen[name] {
			problems = append(problems, fmt.Sprintf("step %d (%s): duplicate step", i, name))
		}
		seen[name] = true

		for _, msg := range step.check(ensured) {
			problems = append(problems, fmt.Sprintf("step %d (%s): %s", i, name, msg))
		}

		if step.Kind == KindTable {
			ensured[step.Table.Name] = true
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidPlan, strings.Join(problems, "; "))
	}
	return nil
}

func (s Step) check(ensured map[string]bool) []string {
	var problems []string
	ident := func(what, name string) {
		if !validator.IsIdentifier(name) {
			problems = append(problems, fmt.Sprintf("invalid %s name %q", what, name))
		}
	}

	switch s.Kind {
	case KindTable:
		ident("table", s.Table.Name)
		if len(s.Table.Columns) == 0 {
			problems = append(problems, "table has no columns")
		}
		cols := make(map[string]bool, len(s.Table.Columns))
		for _, c := range s.Table.Columns {
			ident("column", c.Name)
			if c.Type == "" {
				problems = append(problems, fmt.Sprintf("column %q has no type", c.Name))
			}
			cols[c.Name] = true
		}
		for _, fk := range s.Table.ForeignKeys {
			ident("foreign key column", fk.Column)
			ident("referenced table", fk.RefTable)
			ident("referenced column", fk.RefColumn)
			if !cols[fk.Column] {
				problems = append(problems, fmt.Sprintf("foreign key column %q is not a column of the table", fk.Column))
			}
			if fk.RefTable != s.Table.Name && !ensured[fk.RefTable] {
				problems = append(problems, fmt.Sprintf("references table %q before it is ensured", fk.RefTable))
			}
		}
	case KindColumn:
		ident("table", s.Target)
		ident("column", s.Column.Name)
		if s.Column.Type == "" {
			problems = append(problems, "column has no type")
		}
		if s.Column.PrimaryKey || s.Column.Unique {
			problems = append(problems, "additive columns cannot be primary keys or unique")
		}
		if s.Column.NotNull && s.Column.Default == nil {
			problems = append(problems, "NOT NULL column needs a default to be added to existing rows")
		}
	case KindIndex:
		ident("index", s.Index.Name)
		ident("table", s.Index.Table)
		if len(s.Index.Columns) == 0 {
			problems = append(problems, "index has no columns")
		}
		for _, c := range s.Index.Columns {
			ident("column", c)
		}
	case KindSeed:
		ident("table", s.Target)
		ident("unique key", s.UniqueKey)
		if v, ok := s.Row[s.UniqueKey]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("row has no value for unique key %q", s.UniqueKey))
		}
		for _, c := range s.Row.Columns() {
			ident("column", c)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown step kind %q", s.Kind))
	}
	return problems
}
