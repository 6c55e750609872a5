package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"rembgd/internal/device"
	"rembgd/internal/registry"
	"rembgd/pkg/types"
)

// Manager owns the single active model instance and its lifecycle state.
// All state mutation happens here; other components only read it through
// Snapshot/Status or drive it through the public methods.
type Manager struct {
	mu       sync.RWMutex
	state    State
	cur      string // active model id, "" when none
	backend  types.Backend
	lastErr  string
	inflight *loadOp // non-nil while initializing or switching
	lastUsed time.Time

	// runMu serializes runtime Load/Remove/Unload: a switch never replaces
	// the model underneath an in-flight inference.
	runMu sync.Mutex

	registry     *registry.Registry
	caps         device.Capabilities
	runtime      Runtime
	defaultModel string

	loadsTotal atomic.Uint64

	publisher EventPublisher
	log       zerolog.Logger
}

// Ready reports whether the active model can serve inference now.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady
}

// ListModels returns the registry contents.
func (m *Manager) ListModels() []types.Model {
	return m.registry.List()
}

// Capabilities returns the probed device capabilities the manager was built
// with.
func (m *Manager) Capabilities() device.Capabilities {
	return m.caps
}

// resolve maps a requested model id to a registry descriptor. Constrained
// platforms always get the constrained default, whatever was asked for; an
// empty id selects the configured or capability default.
func (m *Manager) resolve(modelID string) (types.Model, error) {
	if m.caps.ConstrainedPlatform {
		return m.registry.Default(m.caps), nil
	}
	if modelID == "" {
		if m.defaultModel != "" {
			modelID = m.defaultModel
		} else {
			return m.registry.Default(m.caps), nil
		}
	}
	mdl, ok := m.registry.ByID(modelID)
	if !ok {
		return types.Model{}, ErrModelNotFound(modelID)
	}
	return mdl, nil
}

// load drives the runtime for one model load and records the chosen backend.
func (m *Manager) load(ctx context.Context, mdl types.Model) (types.Backend, error) {
	backend := m.caps.Backend(mdl)
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if err := ctx.Err(); err != nil {
		return backend, err
	}
	if err := m.runtime.Load(ctx, mdl, backend); err != nil {
		return backend, err
	}
	m.loadsTotal.Add(1)
	return backend, nil
}
