// File: internal/pipeline/types.go
// Brief: Pipeline step, plan, and run result types.

// Package pipeline executes a deployment as an explicit DAG of named steps.
// Each step declares the output keys it promises and the input references
// ("step.key") it consumes; references are validated when the plan is
// compiled, before any network call is made. Output capture therefore
// strictly precedes every read by construction.
package pipeline

import (
	"context"
	"time"
)

// Step is one provisioning action. Inputs imply ordering edges in addition
// to any explicit Needs; a step may only reference outputs of steps that
// complete before it.
type Step struct {
	ID          string
	Description string
	Needs       []string // explicit ordering edges without data flow
	Inputs      []string // "stepID.outputKey" references
	Outputs     []string // output keys this step promises to capture
	Run         func(ctx context.Context, in Inputs) (map[string]string, error)
}

// Inputs is the read-only view of captured values handed to a step.
type Inputs struct {
	values map[string]string
}

// Get returns the captured value for a "stepID.outputKey" reference. Plan
// compilation guarantees the reference resolves; a miss here means the
// producing step broke its Outputs promise.
func (in Inputs) Get(ref string) (string, bool) {
	v, ok := in.values[ref]
	return v, ok
}

// StepStatus is a step's terminal disposition within one run.
type StepStatus string

const (
	StatusPlanned   StepStatus = "planned"
	StatusRunning   StepStatus = "running"
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// StepResult records one step's outcome.
type StepResult struct {
	ID       string
	Status   StepStatus
	Outputs  map[string]string
	Err      error
	Started  time.Time
	Finished time.Time
}

// Report summarizes a run: what completed, what failed first, and every
// captured output. A failed run names the last completed step and the first
// failure so a re-run is predictable.
type Report struct {
	RunID         string
	Order         []string
	Steps         map[string]*StepResult
	Values        map[string]string
	LastCompleted string
	FirstFailure  string
	Started       time.Time
	Finished      time.Time
	Err           error
}

// Observer receives run lifecycle events, e.g. for journaling or progress output.
type Observer interface {
	RunStarted(runID string, p *Plan)
	StepStarted(runID, stepID string)
	StepFinished(runID, stepID string, res *StepResult)
	RunFinished(runID string, rep *Report)
}
