package manager

import "context"

// EnsureReady is the queue worker's readiness gate: uninitialized triggers
// the default initialization, an in-flight load is awaited, ready returns
// immediately, and failed gets exactly one default re-initialization before
// the error is raised.
func (m *Manager) EnsureReady(ctx context.Context) error {
	retried := false
	for {
		m.mu.RLock()
		st := m.state
		op := m.inflight
		lastErr := m.lastErr
		m.mu.RUnlock()

		switch st {
		case StateReady:
			return nil
		case StateInitializing, StateSwitching:
			if op != nil {
				if err := waitOp(ctx, op); err != nil {
					return err
				}
			}
			continue
		case StateFailed:
			if retried {
				return ErrInitFailed(m.currentOrDefault(), errText(lastErr))
			}
			retried = true
			m.publisher.Publish(Event{Name: "ensure_retry", ModelID: m.currentOrDefault()})
			if _, err := m.Initialize(ctx, ""); err != nil {
				return err
			}
		default: // StateUninitialized
			if _, err := m.Initialize(ctx, ""); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) currentOrDefault() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur != "" {
		return m.cur
	}
	return m.registry.Default(m.caps).ID
}
