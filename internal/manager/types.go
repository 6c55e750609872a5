package manager

import "rembgd/pkg/types"

// State represents the lifecycle state of the active model.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateSwitching     State = "switching"
	StateFailed        State = "failed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State   State
	ModelID string
	Backend types.Backend
	Err     string
}

// loadOp tracks one in-flight model load. Concurrent initializers of the
// same model await the op instead of starting a second load.
type loadOp struct {
	modelID string
	done    chan struct{}
	ok      bool
	err     error
}

func newLoadOp(modelID string) *loadOp {
	return &loadOp{modelID: modelID, done: make(chan struct{})}
}
