package manager

import (
	"context"

	"rembgd/pkg/types"
)

// Runtime abstracts the black-box inference engine the manager drives. A
// runtime holds at most one loaded model; Load replaces it. Implementations
// must return when the context is canceled and may assume Load, Remove and
// Unload are never called concurrently (the manager serializes them).
type Runtime interface {
	// Load prepares the given model on the given backend, replacing any
	// previously loaded model.
	Load(ctx context.Context, mdl types.Model, backend types.Backend) error
	// Remove runs the loaded model on the image payload and returns the
	// processed image (PNG with background removed).
	Remove(ctx context.Context, payload []byte, mime string) ([]byte, error)
	// Unload releases the loaded model. A later Load must succeed.
	Unload() error
}
