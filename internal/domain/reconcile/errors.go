package reconcile

import "errors"

var (
	// ErrExternalSync wraps any gateway failure.
	ErrExternalSync = errors.New("external sync failed")

	ErrNotMaterialized = errors.New("booking has no channel")
)
