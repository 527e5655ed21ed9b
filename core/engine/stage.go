package engine

import (
	stderrors "errors"
	"fmt"

	"cdr-cost/internal/errors"
)

// Stage is a step of the enrichment pipeline. Stages only move forward;
// any failure moves the run to StageError.
type Stage int

const (
	StageFetching   Stage = iota // querying the catalog
	StageExtracting              // reading the unit price
	StageComputing               // applying the billing quantity
	StageFormatting              // rendering the artifact
	StageDone
	StageError
)

// String returns the stage name
func (s Stage) String() string {
	names := []string{
		"fetching", "extracting", "computing", "formatting", "done", "error",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// StageOrderError indicates a transition that goes backwards or leaves
// a terminal stage
type StageOrderError struct {
	From Stage
	To   Stage
}

func (e *StageOrderError) Error() string {
	return fmt.Sprintf("cannot move from stage %s to %s", e.From, e.To)
}

// tracker records the stage history of one record
type tracker struct {
	current Stage
	started bool
	history []Stage
}

func (t *tracker) enter(s Stage) error {
	if t.started && (t.current == StageDone || t.current == StageError || s <= t.current) {
		return &StageOrderError{From: t.current, To: s}
	}
	t.current = s
	t.started = true
	t.history = append(t.history, s)
	return nil
}

// fail moves to StageError and tags err with the stage it happened in.
// Untyped errors are wrapped as fallback.
func (t *tracker) fail(err error, fallback errors.Type) error {
	failed := t.current
	t.current = StageError
	t.history = append(t.history, StageError)

	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.Wrap(fallback, fmt.Sprintf("%s failed", failed), err)
		err = e
	}
	e.WithContext("stage", failed.String())
	return err
}

func (t *tracker) stages() []Stage {
	return append([]Stage(nil), t.history...)
}
