package manager

import (
	"context"
	"testing"
	"time"

	"rembgd/internal/device"
	"rembgd/internal/registry"
)

func TestSwitchSuccess(t *testing.T) {
	rt := &fakeRuntime{}
	m, pub := newTestManager(device.Capabilities{}, rt)
	if _, err := m.Initialize(context.Background(), registry.DefaultModelID); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := m.Switch(context.Background(), registry.ConstrainedModelID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateReady || snap.ModelID != registry.ConstrainedModelID {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if pub.Count("switch_ready") != 1 {
		t.Fatalf("expected switch_ready event")
	}
}

func TestSwitchFallsBackToPreviousModel(t *testing.T) {
	rt := &fakeRuntime{}
	m, pub := newTestManager(device.Capabilities{}, rt)
	if _, err := m.Initialize(context.Background(), registry.DefaultModelID); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	rt.setFail(registry.ConstrainedModelID, errLoadBoom)
	err := m.Switch(context.Background(), registry.ConstrainedModelID)
	if err == nil || !IsSwitchFellBack(err) {
		t.Fatalf("expected fallback marker, got %v", err)
	}
	if active, ok := FellBackTo(err); !ok || active != registry.DefaultModelID {
		t.Fatalf("expected fallback to %s, got %s", registry.DefaultModelID, active)
	}
	snap := m.Snapshot()
	if snap.State != StateReady || snap.ModelID != registry.DefaultModelID {
		t.Fatalf("expected ready on previous model, got %+v", snap)
	}
	if pub.Count("switch_fallback") != 1 {
		t.Fatalf("expected switch_fallback event")
	}
}

func TestSwitchFromFailedFallsBackToDefault(t *testing.T) {
	rt := &fakeRuntime{}
	rt.setFail(registry.DefaultModelID, errLoadBoom)
	m, _ := newTestManager(device.Capabilities{}, rt)

	// Drive into failed with no previously active model.
	if _, err := m.Initialize(context.Background(), ""); err == nil {
		t.Fatalf("expected initial failure")
	}
	rt.setFail(registry.DefaultModelID, nil)
	rt.setFail(registry.ConstrainedModelID, errLoadBoom)

	err := m.Switch(context.Background(), registry.ConstrainedModelID)
	if err == nil || !IsSwitchFellBack(err) {
		t.Fatalf("expected fallback marker, got %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateReady || snap.ModelID != registry.DefaultModelID {
		t.Fatalf("expected ready on platform default, got %+v", snap)
	}
}

func TestSwitchFallbackFailureEndsFailed(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(device.Capabilities{}, rt)
	if _, err := m.Initialize(context.Background(), registry.DefaultModelID); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	rt.setFail(registry.ConstrainedModelID, errLoadBoom)
	rt.setFail(registry.DefaultModelID, errLoadBoom)
	err := m.Switch(context.Background(), registry.ConstrainedModelID)
	if err == nil || !IsInitFailed(err) {
		t.Fatalf("expected init failure, got %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateFailed {
		t.Fatalf("expected failed state, got %+v", snap)
	}

	// Failed is never terminal.
	rt.setFail(registry.DefaultModelID, nil)
	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("recovery after failed switch: %v", err)
	}
}

func TestSwitchRejectedWhileInitializing(t *testing.T) {
	rt := &fakeRuntime{loadDelay: 100 * time.Millisecond}
	m, _ := newTestManager(device.Capabilities{}, rt)

	go func() { _, _ = m.Initialize(context.Background(), "") }()
	time.Sleep(20 * time.Millisecond)

	err := m.Switch(context.Background(), registry.ConstrainedModelID)
	if err == nil || !IsInvalidState(err) {
		t.Fatalf("expected invalid-state error, got %v", err)
	}
}

func TestSwitchNoopWhenAlreadyActive(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(device.Capabilities{}, rt)
	if _, err := m.Initialize(context.Background(), registry.DefaultModelID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := m.Switch(context.Background(), registry.DefaultModelID); err != nil {
		t.Fatalf("switch to active model: %v", err)
	}
	if rt.loadCount() != 1 {
		t.Fatalf("expected no second load, got %d", rt.loadCount())
	}
}
