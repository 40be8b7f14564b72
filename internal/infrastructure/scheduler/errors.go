package scheduler

import "errors"

// ErrInvalidConfig is returned when configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// ErrRunInProgress is returned when a run is requested while one is active
var ErrRunInProgress = errors.New("reconciliation run already in progress")
