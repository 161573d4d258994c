package provisioner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/tenant"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/utils"
)

// SchemaStore is the subset of *storage.Store the provisioner drives.
type SchemaStore interface {
	Location() string
	Qualify(table string) string
	ColumnType(logical string) string
	Exec(ctx context.Context, stmt string, args ...interface{}) (int64, error)
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	IndexExists(ctx context.Context, index string) (bool, error)
}

var _ SchemaStore = (*storage.Store)(nil)

// Provisioner applies idempotent schema steps to one clinic's store.
// It is not safe for concurrent use; run one Provisioner per store.
type Provisioner struct {
	store    SchemaStore
	classify func(error) storage.SchemaErrorKind
}

// New returns a Provisioner bound to store.
func New(store SchemaStore) *Provisioner {
	return &Provisioner{store: store, classify: storage.ClassifySchemaError}
}

// EnsureTable creates the table when it does not exist. An existing table is
// left untouched even if its shape differs from spec.
func (p *Provisioner) EnsureTable(ctx context.Context, spec TableSpec) Outcome {
	step := Step{Kind: KindTable, Table: spec}
	stmt := createTableSQL(p.store, spec)
	out, start := p.begin(step, stmt)
	log := logger.FromContext(ctx).With(zap.String("step", out.Step))

	exists, err := p.store.TableExists(ctx, spec.Name)
	if err != nil {
		return p.fail(ctx, out, start, err)
	}
	if exists {
		log.Debug("Table already exists, skipping create")
		return p.finish(ctx, out, start, StatusAlreadyExists)
	}

	if _, err := p.store.Exec(ctx, stmt); err != nil {
		if p.classify(err).Benign() {
			log.Info("Table created concurrently, treating as existing", zap.Error(err))
			return p.finish(ctx, out, start, StatusAlreadyExists)
		}
		return p.fail(ctx, out, start, err)
	}
	return p.finish(ctx, out, start, StatusCreated)
}

// EnsureColumn adds col to table. The ALTER is always attempted; a
// duplicate-column failure means the migration was already applied.
func (p *Provisioner) EnsureColumn(ctx context.Context, table string, col Column) Outcome {
	step := Step{Kind: KindColumn, Target: table, Column: col}
	stmt := addColumnSQL(p.store, table, col)
	out, start := p.begin(step, stmt)

	if _, err := p.store.Exec(ctx, stmt); err != nil {
		if p.classify(err) == storage.DuplicateColumn {
			logger.FromContext(ctx).Debug("Column already exists",
				zap.String("step", out.Step),
				zap.NamedError("benign", fmt.Errorf("%w: %v", apperrors.ErrBenignSchemaConflict, err)),
			)
			return p.finish(ctx, out, start, StatusAlreadyExists)
		}
		return p.fail(ctx, out, start, err)
	}
	return p.finish(ctx, out, start, StatusApplied)
}

// EnsureIndex creates the index when it does not exist. Every indexed column
// must exist: SQLite accepts a quoted unknown column as a string literal and
// would otherwise index a constant.
func (p *Provisioner) EnsureIndex(ctx context.Context, spec IndexSpec) Outcome {
	step := Step{Kind: KindIndex, Index: spec}
	stmt := createIndexSQL(p.store, spec)
	out, start := p.begin(step, stmt)

	exists, err := p.store.IndexExists(ctx, spec.Name)
	if err != nil {
		return p.fail(ctx, out, start, err)
	}
	if exists {
		return p.finish(ctx, out, start, StatusAlreadyExists)
	}

	for _, col := range spec.Columns {
		ok, err := p.store.ColumnExists(ctx, spec.Table, col)
		if err != nil {
			return p.fail(ctx, out, start, err)
		}
		if !ok {
			return p.fail(ctx, out, start, fmt.Errorf("no such column: %s.%s", spec.Table, col))
		}
	}

	if _, err := p.store.Exec(ctx, stmt); err != nil {
		if p.classify(err).Benign() {
			return p.finish(ctx, out, start, StatusAlreadyExists)
		}
		return p.fail(ctx, out, start, err)
	}
	return p.finish(ctx, out, start, StatusCreated)
}

// SeedRow inserts row unless a row with the same unique key (or primary key)
// already exists. Existing rows are never overwritten.
func (p *Provisioner) SeedRow(ctx context.Context, table, uniqueKey string, row Row) Outcome {
	step := Step{Kind: KindSeed, Target: table, UniqueKey: uniqueKey, Row: row}
	stmt, args := insertIgnoreSQL(p.store, table, row)
	out, start := p.begin(step, stmt)

	if v, ok := row[uniqueKey]; !ok || v == nil {
		return p.fail(ctx, out, start, fmt.Errorf("%w: row has no value for unique key %q", apperrors.ErrInvalidPlan, uniqueKey))
	}

	affected, err := p.store.Exec(ctx, stmt, args...)
	if err != nil {
		return p.fail(ctx, out, start, err)
	}
	if affected == 0 {
		return p.finish(ctx, out, start, StatusAlreadyExists)
	}
	return p.finish(ctx, out, start, StatusInserted)
}

// Run validates plan and applies its steps in order. The first fatal step
// aborts the run; the steps after it are reported as skipped. Steps that
// completed before the failure stay applied.
func (p *Provisioner) Run(ctx context.Context, plan *Plan) (*Report, error) {
	clinic, _ := tenant.FromContext(ctx)
	report := &Report{
		Clinic:    clinic,
		Location:  p.store.Location(),
		StartedAt: utils.Now(),
	}
	defer func() { report.FinishedAt = utils.Now() }()

	log := logger.FromContext(ctx).With(zap.String("location", report.Location))

	if err := plan.Validate(); err != nil {
		log.Error("Refusing to run invalid plan", zap.Error(err))
		report.abort(err)
		return report, err
	}

	steps := plan.Steps()
	log.Info("Provisioning started", zap.Int("steps", len(steps)))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			p.skipRemaining(report, steps[i:])
			log.Warn("Provisioning interrupted", zap.String("next_step", step.Name()), zap.Error(err))
			err = fmt.Errorf("provisioning interrupted before %s: %w", step.Name(), err)
			report.abort(err)
			return report, err
		}

		out := p.apply(ctx, step)
		report.add(out)

		if out.Status == StatusFailed {
			p.skipRemaining(report, steps[i+1:])
			log.Error("Provisioning aborted",
				zap.String("failed_step", out.Step),
				zap.Int("completed", i),
				zap.Int("skipped", len(steps)-i-1),
				zap.Error(out.Err),
			)
			return report, out.Err
		}
	}

	counts := report.Counts()
	log.Info("Provisioning finished",
		zap.Int("changed", report.Changed()),
		zap.Int("already_existed", counts[StatusAlreadyExists]),
		zap.Duration("duration", utils.Now().Sub(report.StartedAt)),
	)
	return report, nil
}

func (p *Provisioner) apply(ctx context.Context, step Step) Outcome {
	switch step.Kind {
	case KindTable:
		return p.EnsureTable(ctx, step.Table)
	case KindColumn:
		return p.EnsureColumn(ctx, step.Target, step.Column)
	case KindIndex:
		return p.EnsureIndex(ctx, step.Index)
	case KindSeed:
		return p.SeedRow(ctx, step.Target, step.UniqueKey, step.Row)
	default:
		out, start := p.begin(step, "")
		return p.fail(ctx, out, start, fmt.Errorf("%w: unknown step kind %q", apperrors.ErrInvalidPlan, step.Kind))
	}
}

func (p *Provisioner) skipRemaining(report *Report, steps []Step) {
	for _, s := range steps {
		report.add(Outcome{Step: s.Name(), Kind: s.Kind, Table: s.TargetTable(), Status: StatusSkipped})
	}
}

func (p *Provisioner) begin(step Step, stmt string) (Outcome, time.Time) {
	return Outcome{
		Step:      step.Name(),
		Kind:      step.Kind,
		Table:     step.TargetTable(),
		Statement: stmt,
	}, time.Now()
}

func (p *Provisioner) finish(ctx context.Context, out Outcome, start time.Time, status Status) Outcome {
	out.Status = status
	out.Duration = time.Since(start)
	logger.FromContext(ctx).Info("Step completed",
		zap.String("step", out.Step),
		zap.String("status", string(status)),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (p *Provisioner) fail(ctx context.Context, out Outcome, start time.Time, err error) Outcome {
	out.Status = StatusFailed
	out.Duration = time.Since(start)
	out.Err = apperrors.NewFatalSchema(out.Step, out.Statement, err)
	out.Error = out.Err.Error()
	logger.FromContext(ctx).Error("Step failed",
		zap.String("step", out.Step),
		zap.String("statement", out.Statement),
		zap.Error(err),
	)
	return out
}
