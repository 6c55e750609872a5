package manager

import (
	"rembgd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, ModelID: m.cur, Backend: m.backend, Err: m.lastErr}
}

// ModelInfo reports the active model and the probed capabilities. It never
// blocks on a load and never fails.
func (m *Manager) ModelInfo() types.ModelInfoResponse {
	snap := m.Snapshot()
	return types.ModelInfoResponse{
		Model:               snap.ModelID,
		Accelerated:         m.caps.Accelerated,
		ConstrainedPlatform: m.caps.ConstrainedPlatform,
		State:               string(snap.State),
	}
}

// LoadsTotal returns the number of completed model loads.
func (m *Manager) LoadsTotal() uint64 { return m.loadsTotal.Load() }
