package dailysim

import "errors"

var (
	// ErrInvalidConfig is returned by NewEngine and Config.Validate.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrNotReset is returned by Step when the engine has no active episode.
	ErrNotReset = errors.New("environment not reset")
	// ErrInvalidAction is returned by Step for ids outside the action catalog.
	ErrInvalidAction = errors.New("invalid action")
)
