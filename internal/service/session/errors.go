package session

import (
	"errors"
	"fmt"
	"yorae/internal/model"
)

var (
	// ErrInvalidTransition is wrapped by every TransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNoBeforeImage means an after capture arrived without a before image.
	ErrNoBeforeImage = errors.New("session has no before image")
	// ErrAcquisition means the capture collaborator produced no image.
	ErrAcquisition = errors.New("could not acquire image")
	// ErrCompositeFailed means the comparison image could not be produced.
	ErrCompositeFailed = errors.New("could not merge images")
	// ErrStaleSession means the session changed while work was in flight and
	// the result was discarded.
	ErrStaleSession = errors.New("session changed, result discarded")
)

// TransitionError reports an operation that is not allowed from a stage.
type TransitionError struct {
	From model.Stage
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from stage %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
