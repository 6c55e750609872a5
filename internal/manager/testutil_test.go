package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"rembgd/internal/device"
	"rembgd/internal/registry"
	"rembgd/pkg/types"
)

// fakeRuntime is a controllable Runtime for tests.
type fakeRuntime struct {
	mu        sync.Mutex
	loaded    string
	loads     int
	unloads   int
	loadDelay time.Duration
	failLoad  map[string]error
	removeFn  func(payload []byte, mime string) ([]byte, error)

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeRuntime) Load(ctx context.Context, mdl types.Model, backend types.Backend) error {
	if f.loadDelay > 0 {
		select {
		case <-time.After(f.loadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLoad[mdl.ID]; err != nil {
		return err
	}
	f.loaded = mdl.ID
	f.loads++
	return nil
}

func (f *fakeRuntime) Remove(ctx context.Context, payload []byte, mime string) ([]byte, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxInflight.Load()
		if cur <= max || f.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.removeFn != nil {
		return f.removeFn(payload, mime)
	}
	return append([]byte("processed:"), payload...), nil
}

func (f *fakeRuntime) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = ""
	f.unloads++
	return nil
}

func (f *fakeRuntime) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeRuntime) setFail(modelID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad == nil {
		f.failLoad = map[string]error{}
	}
	if err == nil {
		delete(f.failLoad, modelID)
	} else {
		f.failLoad[modelID] = err
	}
}

var errLoadBoom = errors.New("weights corrupt")

func newTestManager(caps device.Capabilities, rt *fakeRuntime) (*Manager, *MemoryPublisher) {
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Registry:     registry.New(),
		Capabilities: caps,
		Runtime:      rt,
		Publisher:    pub,
	})
	return m, pub
}
