package orchestrator

import "errors"

// ErrCancelled is returned up the call stack when a process was
// cancelled at a checkpoint boundary.
var ErrCancelled = errors.New("orchestrator: process cancelled")

// ErrCheckpointNotFound is returned by resume when no checkpoint exists
// to resume from.
var ErrCheckpointNotFound = errors.New("orchestrator: no checkpoint found")
