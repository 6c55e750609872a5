package manager

import (
	"context"
	"time"

	"rembgd/pkg/types"
)

// Initialize loads the given model, or the capability default when modelID
// is empty. It is idempotent when already ready with the same model, and
// single-flight: concurrent callers during an in-flight load of the same
// model await that load instead of starting another. Returns true once the
// model is ready.
func (m *Manager) Initialize(ctx context.Context, modelID string) (bool, error) {
	mdl, err := m.resolve(modelID)
	if err != nil {
		return false, err
	}

	for {
		m.mu.Lock()
		if m.state == StateReady && m.cur == mdl.ID {
			m.mu.Unlock()
			return true, nil
		}
		if op := m.inflight; op != nil {
			m.mu.Unlock()
			if op.modelID == mdl.ID {
				// De-duplicated: share the in-flight load's outcome.
				if err := waitOp(ctx, op); err != nil {
					return false, err
				}
				return op.ok, op.err
			}
			// A different model is loading; let it settle, then retry.
			if err := waitOp(ctx, op); err != nil {
				return false, err
			}
			continue
		}

		op := newLoadOp(mdl.ID)
		m.inflight = op
		m.state = StateInitializing
		m.lastErr = ""
		m.mu.Unlock()

		m.log.Info().Str("model", mdl.ID).Msg("initialize start")
		m.publisher.Publish(Event{Name: "init_start", ModelID: mdl.ID})

		start := time.Now()
		backend, loadErr := m.load(ctx, mdl)
		m.settle(op, mdl.ID, backend, loadErr)
		if loadErr != nil {
			m.log.Error().Str("model", mdl.ID).Err(loadErr).Msg("initialize failed")
			m.publisher.Publish(Event{Name: "init_failed", ModelID: mdl.ID, Fields: map[string]any{"error": loadErr.Error()}})
			return false, op.err
		}
		m.log.Info().Str("model", mdl.ID).Str("backend", string(backend)).
			Dur("dur", time.Since(start)).Msg("initialize ready")
		m.publisher.Publish(Event{Name: "init_ready", ModelID: mdl.ID, Fields: map[string]any{"backend": string(backend)}})
		return true, nil
	}
}

// settle commits the outcome of a load op and wakes its waiters.
func (m *Manager) settle(op *loadOp, modelID string, backend types.Backend, loadErr error) {
	m.mu.Lock()
	m.inflight = nil
	if loadErr == nil {
		m.state = StateReady
		m.cur = modelID
		m.backend = backend
		m.lastErr = ""
		m.lastUsed = time.Now()
		op.ok = true
	} else {
		m.state = StateFailed
		m.lastErr = loadErr.Error()
		op.ok = false
		op.err = ErrInitFailed(modelID, loadErr)
	}
	m.mu.Unlock()
	close(op.done)
}

// waitOp blocks until the load op settles or the caller's context ends.
func waitOp(ctx context.Context, op *loadOp) error {
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
