package manager

import (
	"github.com/rs/zerolog"

	"rembgd/internal/device"
	"rembgd/internal/registry"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry     *registry.Registry
	Capabilities device.Capabilities
	Runtime      Runtime
	// DefaultModel overrides the capability default when set.
	DefaultModel string
	Publisher    EventPublisher
	Logger       *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:        StateUninitialized,
		registry:     cfg.Registry,
		caps:         cfg.Capabilities,
		runtime:      cfg.Runtime,
		defaultModel: cfg.DefaultModel,
		publisher:    cfg.Publisher,
	}
	if m.registry == nil {
		m.registry = registry.New()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	return m
}

// New constructs a Manager with the capability default model.
func New(reg *registry.Registry, caps device.Capabilities, rt Runtime) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, Capabilities: caps, Runtime: rt})
}
