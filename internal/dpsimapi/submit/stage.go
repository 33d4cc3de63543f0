package submit

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Stage names the step of a submission that failed.
type Stage string

const (
	StageValidation Stage = "validation"
	StageAllocation Stage = "allocation"
	StagePersist    Stage = "persist"
	StageIngest     Stage = "ingest"
	StagePublish    Stage = "publish"
	StageTimeout    Stage = "timeout"
)

// StageError is returned for every failed submission. SimulationId is zero if
// the submission failed before an id was allocated; otherwise a record with that
// id may exist in the store.
type StageError struct {
	Stage        Stage
	SimulationId uint64
	Err          error
}

func (e *StageError) Error() string {
	if e.SimulationId == 0 {
		return fmt.Sprintf("submission failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("submission of simulation %d failed at %s: %v", e.SimulationId, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageFromError returns the stage a submission failed in, or "" if err isn't a *StageError.
func StageFromError(err error) Stage {
	var e *StageError
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

func stageError(stage Stage, simulationId uint64, err error) error {
	if isContextError(err) {
		stage = StageTimeout
	}
	return &StageError{Stage: stage, SimulationId: simulationId, Err: err}
}

// storeStageError reports a store failure as a timeout if the deadline passed while
// the store call was in flight. The store client doesn't observe ctx itself.
func storeStageError(ctx context.Context, stage Stage, simulationId uint64, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stageError(StageTimeout, simulationId, errors.WithMessage(ctxErr, err.Error()))
	}
	return stageError(stage, simulationId, err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
