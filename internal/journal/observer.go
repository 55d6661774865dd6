// File: internal/journal/observer.go
// Brief: pipeline.Observer that records run progress into the journal.

package journal

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/fsdeploy/internal/pipeline"
)

// Recorder implements pipeline.Observer on top of a Store. Journal write
// failures are logged and swallowed: losing a journal row must never fail
// a deployment.
type Recorder struct {
	Store   *Store
	App     string
	Region  string
	Command string
	Log     *zap.Logger
}

func (r *Recorder) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Recorder) RunStarted(runID string, p *pipeline.Plan) {
	if err := r.Store.CreateRun(context.Background(), runID, r.App, r.Region, r.Command, p.Order()); err != nil {
		r.log().Warn("journal: create run", zap.String("run", runID), zap.Error(err))
	}
}

func (r *Recorder) StepStarted(runID, stepID string) {
	if err := r.Store.AppendEvent(context.Background(), runID, stepID, "STEP_RUNNING", ""); err != nil {
		r.log().Warn("journal: step start", zap.String("step", stepID), zap.Error(err))
	}
}

func (r *Recorder) StepFinished(runID, stepID string, res *pipeline.StepResult) {
	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	if err := r.Store.SetStepStatus(context.Background(), runID, stepID, string(res.Status), errMsg, res.Started, res.Finished); err != nil {
		r.log().Warn("journal: step finish", zap.String("step", stepID), zap.Error(err))
	}
}

func (r *Recorder) RunFinished(runID string, rep *pipeline.Report) {
	status := "succeeded"
	if rep.Err != nil {
		status = "failed"
	}
	// Skipped rows are finalized here; the runner never starts them.
	for id, res := range rep.Steps {
		if res.Status == pipeline.StatusSkipped {
			if err := r.Store.SetStepStatus(context.Background(), runID, id, string(res.Status), "", res.Started, res.Finished); err != nil {
				r.log().Warn("journal: skip step", zap.String("step", id), zap.Error(err))
			}
		}
	}
	summary := map[string]any{
		"lastCompleted": rep.LastCompleted,
		"firstFailure":  rep.FirstFailure,
		"values":        rep.Values,
	}
	if err := r.Store.FinishRun(context.Background(), runID, status, summary); err != nil {
		r.log().Warn("journal: finish run", zap.String("run", runID), zap.Error(err))
	}
}
