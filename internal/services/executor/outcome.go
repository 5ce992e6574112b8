package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/viso/internal/services/session"
	"github.com/ternarybob/viso/pkg/models"
)

// Outcome is the captured result of one automation run. Every exit path of
// the run constructs one directly, so terminal-state selection is a pure
// function of the outcome rather than error unwinding.
type Outcome struct {
	Status     models.JobStatus
	Result     models.ResultPayload
	ErrMessage string
}

// successOutcome captures a completed run with its extracted payload.
func successOutcome(result models.ResultPayload) Outcome {
	return Outcome{
		Status: models.StatusSuccess,
		Result: result,
	}
}

// failureOutcome captures a failed run. Session errors already carry their
// category prefix from the session package sentinels; everything else is
// classified here as a timeout, automation error or unexpected error.
func failureOutcome(step string, err error) Outcome {
	return Outcome{
		Status:     models.StatusFailed,
		ErrMessage: classifyError(step, err),
	}
}

// panicOutcome captures a recovered panic as a terminal failure.
func panicOutcome(r interface{}) Outcome {
	return Outcome{
		Status:     models.StatusFailed,
		ErrMessage: fmt.Sprintf("unexpected error: panic: %v", r),
	}
}

func classifyError(step string, err error) string {
	switch {
	case errors.Is(err, session.ErrConfiguration),
		errors.Is(err, session.ErrProvider),
		errors.Is(err, session.ErrTimeout):
		// Already prefixed by the session package
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timeout: %s exceeded its deadline: %v", step, err)
	default:
		return fmt.Sprintf("automation error: %s failed: %v", step, err)
	}
}
