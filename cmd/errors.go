package cmd

import (
	"errors"
	"fmt"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// DiagramNotFoundError indicates a diagram lookup failure.
type DiagramNotFoundError struct {
	ID string
}

func (e *DiagramNotFoundError) Error() string {
	return fmt.Sprintf("diagram %s not found (list diagrams with `seca-suite threat list`)", e.ID)
}

func (e *DiagramNotFoundError) Unwrap() error { return sharedErrors.ErrDiagramNotFound }

// InputError signals an invalid flag or argument combination.
type InputError struct {
	Flag   string
	Reason string
}

func (e *InputError) Error() string {
	if e.Flag == "" {
		return e.Reason
	}
	return fmt.Sprintf("--%s: %s", e.Flag, e.Reason)
}

func (e *InputError) Unwrap() error { return sharedErrors.ErrInvalidInput }

// diagramError turns a missing-diagram error into a DiagramNotFoundError.
func diagramError(id string, err error) error {
	if errors.Is(err, sharedErrors.ErrDiagramNotFound) {
		return &DiagramNotFoundError{ID: id}
	}
	return err
}

// describeError is the one-line message printed for a failed command.
func describeError(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.UserMessage()
	}

	var dnf *DiagramNotFoundError
	if errors.As(err, &dnf) {
		return dnf.Error()
	}

	switch {
	case errors.Is(err, tools.ErrNoFallback):
		return err.Error() + "\nHint: check --endpoint and your connection, or retry later"
	case errors.Is(err, sharedErrors.ErrScheduleNotFound):
		return err.Error() + " (list schedules with `seca-suite schedule list`)"
	case errors.Is(err, sharedErrors.ErrHistoryNotFound):
		return err.Error() + " (list entries with `seca-suite history list`)"
	}
	return err.Error()
}

func exitCode(err error) int {
	if errors.Is(err, sharedErrors.ErrInvalidInput) {
		return 2
	}
	return 1
}
