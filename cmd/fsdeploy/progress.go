// File: cmd/fsdeploy/progress.go
// Brief: Colorized step progress and run report output.

package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/example/fsdeploy/internal/pipeline"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	skipMark = color.New(color.FgYellow).Sprint("-")
)

// progressPrinter writes one line per step transition. Steps in the same
// wave finish concurrently, so writes are serialized.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) RunStarted(runID string, plan *pipeline.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s: %d steps in %d waves\n", runID, len(plan.Order()), len(plan.Waves()))
}

func (p *progressPrinter) StepStarted(_, stepID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "  … %s\n", stepID)
}

func (p *progressPrinter) StepFinished(_, stepID string, res *pipeline.StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch res.Status {
	case pipeline.StatusSucceeded:
		fmt.Fprintf(p.out, "  %s %s (%s)\n", okMark, stepID, res.Finished.Sub(res.Started).Round(10*time.Millisecond))
	case pipeline.StatusFailed:
		fmt.Fprintf(p.out, "  %s %s: %v\n", failMark, stepID, res.Err)
	case pipeline.StatusSkipped:
		fmt.Fprintf(p.out, "  %s %s (skipped)\n", skipMark, stepID)
	}
}

func (p *progressPrinter) RunFinished(string, *pipeline.Report) {}

// printReport summarizes a finished run, including the resume point after a
// failure and every captured identifier on success.
func printReport(out io.Writer, rep *pipeline.Report) {
	if rep == nil {
		return
	}
	if rep.Err != nil {
		fmt.Fprintf(out, "\nRun %s failed.\n", rep.RunID)
		if rep.LastCompleted != "" {
			fmt.Fprintf(out, "Last completed step: %s\n", rep.LastCompleted)
		}
		if rep.FirstFailure != "" {
			fmt.Fprintf(out, "First failure: %s\n", rep.FirstFailure)
		}
		return
	}
	fmt.Fprintf(out, "\nRun %s succeeded in %s.\n", rep.RunID, rep.Finished.Sub(rep.Started).Round(10*time.Millisecond))
	keys := make([]string, 0, len(rep.Values))
	for k := range rep.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s = %s\n", k, rep.Values[k])
	}
}
