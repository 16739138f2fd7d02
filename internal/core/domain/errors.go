package domain

import (
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
)

// ErrInvalidInput marks malformed desired or actual state.
var ErrInvalidInput = fmt.Errorf("invalid reconciliation input: %w", cerrdefs.ErrInvalidArgument)

// CollectionError is returned when actual state could not be queried or parsed.
type CollectionError struct {
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("unable to collect actual containers: %v", e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// ApplyError identifies the change that aborted an apply. Changes before
// Index were applied and are not rolled back.
type ApplyError struct {
	Index  int
	Change ServiceContainerChange
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("unable to apply change %d (%s): %v", e.Index+1, e.Change, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
