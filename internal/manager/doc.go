// Package manager owns the single active background-removal model and its
// lifecycle state machine. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: lifecycle states and the read-only Snapshot projection.
//   - errors.go: error types and predicate helpers (IsInitFailed, ...).
//   - runtime.go: the Runtime interface abstracting the inference engine.
//   - initialize.go: Initialize with single-flight load de-duplication.
//   - ensure.go: EnsureReady, the queue worker's readiness gate.
//   - switch_model.go: Switch with fallback to the previous/default model.
//   - unload.go: idle unload back to the uninitialized state.
//   - status.go: Snapshot/Status reporting helpers.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//
// The state machine has no terminal state: "failed" is always recoverable
// via Initialize or EnsureReady.
//
//	uninitialized --Initialize--> initializing --ok--> ready
//	initializing --error--> failed
//	ready --Switch--> switching --ok--> ready
//	switching --error, fallback ok--> ready (previous/default model)
//	switching --error, fallback fails--> failed
//	failed --Initialize/EnsureReady--> initializing
//	ready --UnloadIdle--> uninitialized
//
// Only this package mutates lifecycle state; the queue and the HTTP bridge
// use the public methods and never touch it directly.
package manager
