package provisioner

import (
	"time"
)

// Status is the result of one step.
type Status string

const (
	StatusCreated       Status = "created"
	StatusApplied       Status = "applied"
	StatusInserted      Status = "inserted"
	StatusAlreadyExists Status = "already_exists"
	StatusFailed        Status = "failed"
	StatusSkipped       Status = "skipped"
)

// Outcome records what a single step did.
type Outcome struct {
	Step      string        `json:"step"`
	Kind      StepKind      `json:"kind"`
	Table     string        `json:"table"`
	Status    Status        `json:"status"`
	Statement string        `json:"statement,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
}

// Changed reports whether the step modified the store.
func (o Outcome) Changed() bool {
	switch o.Status {
	case StatusCreated, StatusApplied, StatusInserted:
		return true
	default:
		return false
	}
}

// Report is the per-step result of a provisioning run against one clinic.
type Report struct {
	Clinic     string    `json:"clinic"`
	Location   string    `json:"location"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	// Error is set when the run stopped outside of a step, such as an invalid
	// plan or a cancelled context.
	Error      string    `json:"error,omitempty"`
	err        error
}

func (r *Report) abort(err error) {
	r.err = err
	r.Error = err.Error()
}

func (r *Report) add(o Outcome) {
	if o.Err != nil && o.Error == "" {
		o.Error = o.Err.Error()
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Changed returns how many steps modified the store.
func (r *Report) Changed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Changed() {
			n++
		}
	}
	return n
}

// Failed reports whether the run or any of its steps failed.
func (r *Report) Failed() bool {
	return r.Err() != nil || r.Error != ""
}

// Err returns the error that stopped the run, or that of the first failed
// step.
func (r *Report) Err() error {
	if r.err != nil {
		return r.err
	}
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return o.Err
		}
	}
	return nil
}

// Counts tallies outcomes by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Outcome returns the outcome recorded for the named step.
func (r *Report) Outcome(step string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Step == step {
			return o, true
		}
	}
	return Outcome{}, false
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
