package service

import "errors"

// ErrBackpressure is returned when an asynchronous recompute cannot be queued.
var ErrBackpressure = errors.New("recompute backlog full")
