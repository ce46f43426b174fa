package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type Command int

const (
	CmdStart Command = iota
	CmdAdvance
	CmdPause
	CmdResume
	CmdSkip
	CmdCancel
)

// OutcomeRecorder persists the outcome of one exercise, addressed by its
// original order in the session.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, exerciseOrder int, outcome Outcome) error
}

// permanentError marks a report failure that another attempt cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the runner gives up on the first failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RunnerConfig tunes how outcomes are reported.
type RunnerConfig struct {
	ReportAttempts int
	ReportBackoff  time.Duration
	// OnChange, if set, is called after every transition.
	OnChange func(Snapshot)
}

// Result is what Run returns. ReportErr is set when every report attempt
// failed; the outcome is then lost for this exercise until the session is
// hydrated again.
type Result struct {
	Outcome   Outcome
	ReportErr error
}

// Runner hosts one Engine and persists its outcome before returning.
type Runner struct {
	engine   *Engine
	order    int
	recorder OutcomeRecorder
	cfg      RunnerConfig
}

func NewRunner(engine *Engine, exerciseOrder int, recorder OutcomeRecorder, cfg RunnerConfig) *Runner {
	if cfg.ReportAttempts < 1 {
		cfg.ReportAttempts = 3
	}
	return &Runner{
		engine:   engine,
		order:    exerciseOrder,
		recorder: recorder,
		cfg:      cfg,
	}
}

// Run consumes ticks and commands until the engine finishes. If ctx is done
// first, the exercise is cancelled and that outcome is still persisted.
// A closed command channel counts as cancel.
func (r *Runner) Run(ctx context.Context, ticks <-chan time.Time, commands <-chan Command) Result {
	for !r.engine.Finished() {
		select {
		case <-ctx.Done():
			r.engine.Cancel()
		case <-ticks:
			r.engine.Tick()
		case cmd, ok := <-commands:
			if !ok {
				r.engine.Cancel()
				break
			}
			r.apply(cmd)
		}
		r.notify()
	}

	outcome, _ := r.engine.Outcome()
	// Persist even when ctx is already cancelled.
	err := r.report(context.WithoutCancel(ctx), outcome)
	return Result{Outcome: outcome, ReportErr: err}
}

func (r *Runner) apply(cmd Command) {
	switch cmd {
	case CmdStart:
		r.engine.Start()
	case CmdAdvance:
		r.engine.Advance()
	case CmdPause:
		r.engine.Pause()
	case CmdResume:
		r.engine.Resume()
	case CmdSkip:
		r.engine.Skip()
	case CmdCancel:
		r.engine.Cancel()
	default:
		log.Debugf("timer: ignoring unknown command %d", cmd)
	}
}

func (r *Runner) notify() {
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(r.engine.Snapshot())
	}
}

func (r *Runner) report(ctx context.Context, outcome Outcome) error {
	var err error
	for attempt := 1; attempt <= r.cfg.ReportAttempts; attempt++ {
		if err = r.recorder.RecordOutcome(ctx, r.order, outcome); err == nil {
			return nil
		}
		log.WithFields(log.Fields{
			"exercise_order": r.order,
			"status":         outcome.Status,
			"attempt":        attempt,
		}).Warnf("timer: failed to record outcome: %s", err)
		if IsPermanent(err) {
			return fmt.Errorf("record outcome of exercise %d: %w", r.order, err)
		}

		if attempt < r.cfg.ReportAttempts && r.cfg.ReportBackoff > 0 {
			wait := time.NewTimer(r.cfg.ReportBackoff * time.Duration(attempt))
			<-wait.C
		}
	}
	return fmt.Errorf("record outcome of exercise %d after %d attempts: %w", r.order, r.cfg.ReportAttempts, err)
}
