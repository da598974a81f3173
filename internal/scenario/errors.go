package scenario

import "errors"

var (
	// ErrUnknownStep is returned by Goto when no step has the requested id.
	ErrUnknownStep = errors.New("scenario: unknown step")

	// ErrInvalidScenario is returned when a descriptor fails validation.
	ErrInvalidScenario = errors.New("scenario: invalid descriptor")

	// ErrEmptyScenario is returned when starting a game without steps.
	ErrEmptyScenario = errors.New("scenario: no steps loaded")
)
