package manager

import (
	"context"
	"time"
)

// Switch replaces the active model. Valid only from the ready or failed
// states. When loading the new model fails, the manager falls back to the
// previously active model (or the platform default if none) and returns a
// fallback-marked error; the failed state is only entered when the fallback
// load fails too.
func (m *Manager) Switch(ctx context.Context, modelID string) error {
	mdl, err := m.resolve(modelID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	switch m.state {
	case StateReady, StateFailed:
	default:
		st := m.state
		m.mu.Unlock()
		return invalidStateError{op: "switch", state: st}
	}
	if m.state == StateReady && m.cur == mdl.ID {
		m.mu.Unlock()
		return nil
	}
	prev := m.cur
	op := newLoadOp(mdl.ID)
	m.inflight = op
	m.state = StateSwitching
	m.mu.Unlock()

	m.log.Info().Str("from", prev).Str("to", mdl.ID).Msg("switch start")
	m.publisher.Publish(Event{Name: "switch_start", ModelID: mdl.ID, Fields: map[string]any{"from": prev}})

	start := time.Now()
	backend, loadErr := m.load(ctx, mdl)
	if loadErr == nil {
		m.settle(op, mdl.ID, backend, nil)
		m.log.Info().Str("model", mdl.ID).Dur("dur", time.Since(start)).Msg("switch ready")
		m.publisher.Publish(Event{Name: "switch_ready", ModelID: mdl.ID})
		return nil
	}

	// Fall back to the previous model, or the platform default when no
	// model was ever active.
	fb := m.registry.Default(m.caps)
	if prev != "" {
		if p, ok := m.registry.ByID(prev); ok {
			fb = p
		}
	}
	fbBackend, fbErr := m.load(ctx, fb)
	if fbErr != nil {
		m.settle(op, mdl.ID, backend, loadErr)
		m.log.Error().Str("model", mdl.ID).Str("fallback", fb.ID).
			Err(fbErr).Msg("switch failed, fallback failed")
		m.publisher.Publish(Event{Name: "switch_failed", ModelID: mdl.ID, Fields: map[string]any{"fallback": fb.ID}})
		return op.err
	}

	fellBack := switchFellBackError{requested: mdl.ID, active: fb.ID, cause: loadErr}
	m.mu.Lock()
	m.inflight = nil
	m.state = StateReady
	m.cur = fb.ID
	m.backend = fbBackend
	m.lastErr = ""
	m.lastUsed = time.Now()
	op.ok = true
	op.err = fellBack
	m.mu.Unlock()
	close(op.done)

	m.log.Warn().Str("requested", mdl.ID).Str("active", fb.ID).
		Err(loadErr).Msg("switch fell back")
	m.publisher.Publish(Event{Name: "switch_fallback", ModelID: fb.ID, Fields: map[string]any{"requested": mdl.ID}})
	return fellBack
}
