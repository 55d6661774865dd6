// File: internal/pipeline/run.go
// Brief: Wave-by-wave plan execution with fail-fast semantics.

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes a compiled plan. Waves run in order; steps inside a wave
// run concurrently up to Concurrency. The first fatal step stops issuance
// of new steps but never unwinds anything already applied — completed steps
// stay, and a re-run of the whole pipeline is the recovery path.
type Runner struct {
	Concurrency int // parallel steps per wave; <=0 means 1
	Observers   []Observer
	Log         *zap.Logger
}

// Run executes the plan and always returns a report; the error mirrors
// Report.Err for callers that only care about pass/fail.
func (r *Runner) Run(ctx context.Context, runID string, p *Plan) (*Report, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	rep := &Report{
		RunID:   runID,
		Order:   p.Order(),
		Steps:   map[string]*StepResult{},
		Values:  map[string]string{},
		Started: time.Now().UTC(),
	}
	for _, id := range rep.Order {
		rep.Steps[id] = &StepResult{ID: id, Status: StatusPlanned}
	}
	for _, ob := range r.Observers {
		ob.RunStarted(runID, p)
	}

	var mu sync.Mutex // guards rep.Values and first-failure bookkeeping
	halted := false

	for waveIdx, wave := range p.Waves() {
		if halted {
			break
		}
		g, waveCtx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, id := range wave {
			step, _ := p.StepByID(id)
			res := rep.Steps[id]
			g.Go(func() error {
				if err := waveCtx.Err(); err != nil {
					// A sibling already failed; leave this step planned.
					return nil
				}
				res.Status = StatusRunning
				res.Started = time.Now().UTC()
				for _, ob := range r.Observers {
					ob.StepStarted(runID, id)
				}
				log.Info("step started", zap.String("step", id), zap.Int("wave", waveIdx))

				mu.Lock()
				in := Inputs{values: snapshot(rep.Values)}
				mu.Unlock()

				outputs, err := step.Run(waveCtx, in)
				res.Finished = time.Now().UTC()
				if err != nil {
					res.Status = StatusFailed
					res.Err = err
					mu.Lock()
					if rep.FirstFailure == "" {
						rep.FirstFailure = id
						rep.Err = fmt.Errorf("step %s: %w", id, err)
					}
					mu.Unlock()
					for _, ob := range r.Observers {
						ob.StepFinished(runID, id, res)
					}
					log.Error("step failed", zap.String("step", id), zap.Error(err))
					return err
				}
				res.Status = StatusSucceeded
				res.Outputs = outputs
				mu.Lock()
				for k, v := range outputs {
					rep.Values[id+"."+k] = v
				}
				rep.LastCompleted = id
				mu.Unlock()
				for _, ob := range r.Observers {
					ob.StepFinished(runID, id, res)
				}
				log.Info("step succeeded", zap.String("step", id))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			halted = true
		}
		if ctx.Err() != nil {
			halted = true
			mu.Lock()
			if rep.Err == nil {
				rep.Err = ctx.Err()
			}
			mu.Unlock()
		}
	}

	// Anything never started is reported as skipped so the operator can see
	// exactly where a re-run will pick up.
	for _, id := range rep.Order {
		if rep.Steps[id].Status == StatusPlanned {
			rep.Steps[id].Status = StatusSkipped
		}
	}
	rep.Finished = time.Now().UTC()
	for _, ob := range r.Observers {
		ob.RunFinished(runID, rep)
	}
	return rep, rep.Err
}

func snapshot(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
