package monitor

import "errors"

var (
	ErrAlreadyStarted = errors.New("monitor: sampler already started")
	ErrNotStarted     = errors.New("monitor: sampler not running")
)
