package manager

import "time"

// UnloadIdle releases the model when it has been ready but unused for
// longer than maxIdle, returning the lifecycle to uninitialized. It is a
// no-op in every other state. Returns true when an unload happened.
func (m *Manager) UnloadIdle(maxIdle time.Duration) bool {
	if maxIdle <= 0 {
		return false
	}
	m.mu.Lock()
	if m.state != StateReady || m.inflight != nil || time.Since(m.lastUsed) < maxIdle {
		m.mu.Unlock()
		return false
	}
	modelID := m.cur
	m.state = StateUninitialized
	m.cur = ""
	m.backend = ""
	m.mu.Unlock()

	m.runMu.Lock()
	err := m.runtime.Unload()
	m.runMu.Unlock()

	if err != nil {
		m.log.Warn().Str("model", modelID).Err(err).Msg("idle unload")
	} else {
		m.log.Info().Str("model", modelID).Msg("idle unload")
	}
	m.publisher.Publish(Event{Name: "unload_idle", ModelID: modelID})
	return true
}

// Close releases the runtime unconditionally. Used at process shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.state = StateUninitialized
	m.cur = ""
	m.backend = ""
	m.mu.Unlock()
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.runtime.Unload()
}
