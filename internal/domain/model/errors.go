package model

import "errors"

// Sentinel kinds for validation failures.
var (
	ErrInvalidProject = errors.New("invalid project")
	ErrInvalidRecord  = errors.New("invalid record")
)
