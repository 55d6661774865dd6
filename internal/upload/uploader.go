// File: internal/upload/uploader.go
// Brief: Bundle publication state machine (direct attempts, staged fallback).

// Package upload publishes bundles to the runtime platform. The direct
// transport is tried first under a small fixed retry budget; once the budget
// is spent the bundle is staged to durable storage and published by
// reference. The staged path runs at most once and its outcome is final.
package upload

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/fsdeploy/internal/bundle"
)

// State names the uploader's state machine positions.
type State string

const (
	StateDirectAttempt State = "DIRECT_ATTEMPT"
	StateStagedAttempt State = "STAGED_ATTEMPT"
	StatePublished     State = "PUBLISHED"
	StateFailed        State = "FAILED"
)

// Transport identifies which path carried an attempt.
type Transport string

const (
	TransportDirect Transport = "direct"
	TransportStaged Transport = "staged"
)

// DefaultRetries is the direct-path attempt budget.
const DefaultRetries = 3

// Attempt records one publish try, successful or not; the winning attempt
// carries a nil Err. Attempts live only for the duration of a Publish call;
// they are reported, never persisted.
type Attempt struct {
	Number     int
	Transport  Transport
	ErrorClass string
	Err        error
}

// StagedLocation addresses a staged copy in durable storage.
type StagedLocation struct {
	Bucket string
	Key    string
}

// Target publishes one bundle to the platform, either with the payload
// inline or by reference to a staged copy.
type Target interface {
	Name() string
	PublishDirect(ctx context.Context, b *bundle.Bundle) (string, error)
	PublishStaged(ctx context.Context, loc StagedLocation) (string, error)
}

// Stager places a bundle into durable intermediate storage. Staged copies
// may outlive the run; nothing depends on their cleanup.
type Stager interface {
	Stage(ctx context.Context, key string, b *bundle.Bundle) (StagedLocation, error)
}

// TransferError is the terminal failure of a Publish call, carrying every
// attempt that was made.
type TransferError struct {
	Artifact string
	Attempts []Attempt
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("publish %s failed after %d attempts: %v", e.Artifact, len(e.Attempts), e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Result reports a successful publication.
type Result struct {
	Identifier string
	Transport  Transport
	Attempts   []Attempt
}

// Uploader drives the publication state machine.
type Uploader struct {
	Stager  Stager
	Retries int                         // direct attempts; <=0 means DefaultRetries
	Backoff func(attempt int) time.Duration // nil means DefaultBackoff
	Log     *zap.Logger
}

// Publish runs the state machine for one bundle against one target.
func (u *Uploader) Publish(ctx context.Context, t Target, b *bundle.Bundle) (Result, error) {
	retries := u.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	backoff := u.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	log := u.Log
	if log == nil {
		log = zap.NewNop()
	}

	var attempts []Attempt
	state := StateDirectAttempt
	for state == StateDirectAttempt {
		n := len(attempts) + 1
		id, err := t.PublishDirect(ctx, b)
		if err == nil {
			log.Info("published artifact",
				zap.String("artifact", t.Name()),
				zap.String("transport", string(TransportDirect)),
				zap.Int("attempt", n))
			attempts = append(attempts, Attempt{Number: n, Transport: TransportDirect})
			return Result{Identifier: id, Transport: TransportDirect, Attempts: attempts}, nil
		}
		class := ClassifyError(err)
		attempts = append(attempts, Attempt{Number: n, Transport: TransportDirect, ErrorClass: class, Err: err})
		log.Warn("direct publish failed",
			zap.String("artifact", t.Name()),
			zap.Int("attempt", n),
			zap.String("class", class),
			zap.Error(err))
		if ctx.Err() != nil {
			return Result{}, &TransferError{Artifact: t.Name(), Attempts: attempts, Err: ctx.Err()}
		}
		if n >= retries {
			state = StateStagedAttempt
			break
		}
		if err := sleep(ctx, backoff(n)); err != nil {
			return Result{}, &TransferError{Artifact: t.Name(), Attempts: attempts, Err: err}
		}
	}

	// Staged fallback: one shot, terminal either way.
	n := len(attempts) + 1
	log.Info("falling back to staged transport", zap.String("artifact", t.Name()))
	loc, err := u.Stager.Stage(ctx, stageKey(t.Name()), b)
	if err == nil {
		var id string
		id, err = t.PublishStaged(ctx, loc)
		if err == nil {
			log.Info("published artifact",
				zap.String("artifact", t.Name()),
				zap.String("transport", string(TransportStaged)),
				zap.String("bucket", loc.Bucket),
				zap.String("key", loc.Key))
			attempts = append(attempts, Attempt{Number: n, Transport: TransportStaged})
			return Result{Identifier: id, Transport: TransportStaged, Attempts: attempts}, nil
		}
	}
	attempts = append(attempts, Attempt{Number: n, Transport: TransportStaged, ErrorClass: ClassifyError(err), Err: err})
	return Result{}, &TransferError{Artifact: t.Name(), Attempts: attempts, Err: err}
}

func stageKey(name string) string {
	return fmt.Sprintf("staging/%s-%d.zip", name, time.Now().UTC().Unix())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
