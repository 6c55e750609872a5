package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"rembgd/internal/device"
	"rembgd/internal/registry"
)

func TestInitializeDefaultModel(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(device.Capabilities{}, rt)

	ok, err := m.Initialize(context.Background(), "")
	if err != nil || !ok {
		t.Fatalf("initialize: ok=%v err=%v", ok, err)
	}
	snap := m.Snapshot()
	if snap.State != StateReady || snap.ModelID != registry.DefaultModelID {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestInitializeIdempotentWhenReady(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(device.Capabilities{}, rt)

	if _, err := m.Initialize(context.Background(), registry.DefaultModelID); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	ok, err := m.Initialize(context.Background(), registry.DefaultModelID)
	if err != nil || !ok {
		t.Fatalf("second initialize: ok=%v err=%v", ok, err)
	}
	if rt.loadCount() != 1 {
		t.Fatalf("expected 1 load, got %d", rt.loadCount())
	}
}

func TestSingleFlightInitialization(t *testing.T) {
	rt := &fakeRuntime{loadDelay: 50 * time.Millisecond}
	m, pub := newTestManager(device.Capabilities{}, rt)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := m.Initialize(context.Background(), registry.DefaultModelID)
			if err == nil && !ok {
				results[i] = errLoadBoom
				return
			}
			results[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if rt.loadCount() != 1 {
		t.Fatalf("expected exactly one underlying load, got %d", rt.loadCount())
	}
	if got := pub.Count("init_start"); got != 1 {
		t.Fatalf("expected 1 init_start event, got %d", got)
	}
}

func TestInitializeUnknownModel(t *testing.T) {
	m, _ := newTestManager(device.Capabilities{}, &fakeRuntime{})
	_, err := m.Initialize(context.Background(), "no-such-model")
	if err == nil || !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestInitializeFailureIsRetriable(t *testing.T) {
	rt := &fakeRuntime{}
	rt.setFail(registry.DefaultModelID, errLoadBoom)
	m, _ := newTestManager(device.Capabilities{}, rt)

	ok, err := m.Initialize(context.Background(), "")
	if ok || err == nil || !IsInitFailed(err) {
		t.Fatalf("expected init failure, got ok=%v err=%v", ok, err)
	}
	if snap := m.Snapshot(); snap.State != StateFailed || snap.Err == "" {
		t.Fatalf("expected failed state with error, got %+v", snap)
	}

	rt.setFail(registry.DefaultModelID, nil)
	ok, err = m.Initialize(context.Background(), "")
	if err != nil || !ok {
		t.Fatalf("retry after failure: ok=%v err=%v", ok, err)
	}
	if snap := m.Snapshot(); snap.State != StateReady {
		t.Fatalf("expected ready after retry, got %+v", snap)
	}
}

func TestConstrainedPlatformOverridesRequestedModel(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(device.Capabilities{ConstrainedPlatform: true}, rt)

	ok, err := m.Initialize(context.Background(), registry.DefaultModelID)
	if err != nil || !ok {
		t.Fatalf("initialize: ok=%v err=%v", ok, err)
	}
	if snap := m.Snapshot(); snap.ModelID != registry.ConstrainedModelID {
		t.Fatalf("expected constrained default, got %+v", snap)
	}
}

func TestInitializeCanceledWhileWaiting(t *testing.T) {
	rt := &fakeRuntime{loadDelay: 200 * time.Millisecond}
	m, _ := newTestManager(device.Capabilities{}, rt)

	go func() { _, _ = m.Initialize(context.Background(), registry.DefaultModelID) }()
	// Let the first load start.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Initialize(ctx, registry.DefaultModelID)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestModelInfoNeverBlocks(t *testing.T) {
	rt := &fakeRuntime{loadDelay: 100 * time.Millisecond}
	m, _ := newTestManager(device.Capabilities{Accelerated: true}, rt)

	go func() { _, _ = m.Initialize(context.Background(), "") }()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		info := m.ModelInfo()
		if info.State != string(StateInitializing) {
			t.Errorf("expected initializing, got %s", info.State)
		}
		if !info.Accelerated {
			t.Errorf("expected accelerated capabilities")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
		t.Fatalf("ModelInfo blocked behind an in-flight load")
	}
}

func TestRemoveRefusesWhenNotReady(t *testing.T) {
	m, _ := newTestManager(device.Capabilities{}, &fakeRuntime{})
	_, err := m.Remove(context.Background(), []byte("img"), "image/png")
	if err == nil || !IsInitFailed(err) {
		t.Fatalf("expected init-failure error, got %v", err)
	}
}

func TestUnloadIdleReturnsToUninitialized(t *testing.T) {
	rt := &fakeRuntime{}
	m, pub := newTestManager(device.Capabilities{}, rt)
	if _, err := m.Initialize(context.Background(), ""); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if !m.UnloadIdle(time.Millisecond) {
		t.Fatalf("expected idle unload to trigger")
	}
	if snap := m.Snapshot(); snap.State != StateUninitialized || snap.ModelID != "" {
		t.Fatalf("unexpected snapshot after unload: %+v", snap)
	}
	if pub.Count("unload_idle") != 1 {
		t.Fatalf("expected unload_idle event")
	}

	// Model must be loadable again afterwards.
	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("ensure after unload: %v", err)
	}
}

func TestUnloadIdleNoopWhenRecentlyUsed(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(device.Capabilities{}, rt)
	if _, err := m.Initialize(context.Background(), ""); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.UnloadIdle(time.Hour) {
		t.Fatalf("unexpected unload of a recently used model")
	}
}
