package manager

import (
	"context"
	"time"
)

// Remove runs the active model on one image payload. The caller (the queue
// worker) is responsible for EnsureReady; Remove still refuses to run
// without a ready model rather than crash. The run mutex guarantees a
// switch never swaps the model underneath an in-flight inference.
func (m *Manager) Remove(ctx context.Context, payload []byte, mime string) ([]byte, error) {
	m.mu.RLock()
	st := m.state
	modelID := m.cur
	m.mu.RUnlock()
	if st != StateReady {
		return nil, ErrInitFailed(modelID, errText("model not ready"))
	}

	m.runMu.Lock()
	out, err := m.runtime.Remove(ctx, payload, mime)
	m.runMu.Unlock()

	m.mu.Lock()
	m.lastUsed = time.Now()
	m.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, inferenceError{cause: err}
	}
	return out, nil
}
