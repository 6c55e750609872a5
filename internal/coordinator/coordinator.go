// Package coordinator wires the lifecycle manager and the inference queue
// into the single object the HTTP layer talks to. Lifecycle transitions stay
// inside the manager and ordering stays inside the queue; the coordinator
// only routes calls and merges status.
package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rembgd/internal/device"
	"rembgd/internal/manager"
	"rembgd/internal/queue"
	"rembgd/internal/registry"
	"rembgd/pkg/types"
)

// Config collects everything a Coordinator needs.
type Config struct {
	Registry     *registry.Registry
	Capabilities device.Capabilities
	Runtime      manager.Runtime
	// DefaultModel overrides the capability default when set.
	DefaultModel string
	// MaxQueueDepth and MaxWait bound admission; zero values use the
	// queue defaults.
	MaxQueueDepth int
	MaxWait       time.Duration
	// BaseContext cancels in-flight inference on process shutdown.
	BaseContext context.Context
	Publisher   manager.EventPublisher
	Logger      *zerolog.Logger
}

// Coordinator implements the httpapi.Service contract.
type Coordinator struct {
	mgr   *manager.Manager
	q     *queue.Queue
	caps  device.Capabilities
	start time.Time
}

// New builds the manager and starts the queue worker.
func New(cfg Config) *Coordinator {
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:     cfg.Registry,
		Capabilities: cfg.Capabilities,
		Runtime:      cfg.Runtime,
		DefaultModel: cfg.DefaultModel,
		Publisher:    cfg.Publisher,
		Logger:       cfg.Logger,
	})
	q := queue.New(mgr, queue.Options{
		MaxDepth:    cfg.MaxQueueDepth,
		MaxWait:     cfg.MaxWait,
		BaseContext: cfg.BaseContext,
		Logger:      cfg.Logger,
	})
	return &Coordinator{mgr: mgr, q: q, caps: cfg.Capabilities, start: time.Now()}
}

func (c *Coordinator) ListModels() []types.Model { return c.mgr.ListModels() }

func (c *Coordinator) Ready() bool { return c.mgr.Ready() }

func (c *Coordinator) ModelInfo() types.ModelInfoResponse { return c.mgr.ModelInfo() }

// Initialize pre-warms a model without enqueueing any inference.
func (c *Coordinator) Initialize(ctx context.Context, modelID string) (bool, error) {
	return c.mgr.Initialize(ctx, modelID)
}

// Switch replaces the active model. Queued requests keep their admission
// order and run against whichever model is active when they reach the
// worker.
func (c *Coordinator) Switch(ctx context.Context, modelID string) error {
	return c.mgr.Switch(ctx, modelID)
}

// Remove runs one background removal through the FIFO queue. The queue
// lazily initializes the default model on first use.
func (c *Coordinator) Remove(ctx context.Context, payload []byte, mime string) (queue.Result, error) {
	return c.q.Submit(ctx, payload, mime)
}

// Status merges the manager snapshot with queue statistics.
func (c *Coordinator) Status() types.StatusResponse {
	snap := c.mgr.Snapshot()
	stats := c.q.Stats()
	now := time.Now()
	return types.StatusResponse{
		State:               string(snap.State),
		Model:               snap.ModelID,
		Backend:             string(snap.Backend),
		Accelerated:         c.caps.Accelerated,
		ConstrainedPlatform: c.caps.ConstrainedPlatform,
		QueueLen:            stats.Len,
		Inflight:            stats.Inflight,
		MaxQueueDepth:       stats.MaxDepth,
		LoadsTotal:          c.mgr.LoadsTotal(),
		ProcessedTotal:      stats.Processed,
		LastError:           snap.Err,
		UptimeSeconds:       int64(now.Sub(c.start).Seconds()),
		ServerTimeUnix:      now.Unix(),
	}
}

// UnloadIdle releases the model when it has been unused for maxIdle.
func (c *Coordinator) UnloadIdle(maxIdle time.Duration) bool {
	return c.mgr.UnloadIdle(maxIdle)
}

// Close drains the queue and unloads the model. Safe to call once during
// shutdown.
func (c *Coordinator) Close() error {
	c.q.Close()
	return c.mgr.Close()
}
