package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeManager is a controllable Manager for queue tests.
type fakeManager struct {
	mu          sync.Mutex
	ensureErrs  []error // consumed per call; nil entry means success
	removeDelay time.Duration
	removeErr   func(payload []byte) error
	order       [][]byte

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeManager) EnsureReady(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ensureErrs) == 0 {
		return nil
	}
	err := f.ensureErrs[0]
	f.ensureErrs = f.ensureErrs[1:]
	return err
}

func (f *fakeManager) Remove(ctx context.Context, payload []byte, mime string) ([]byte, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxInflight.Load()
		if cur <= max || f.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.removeDelay > 0 {
		time.Sleep(f.removeDelay)
	}
	f.mu.Lock()
	f.order = append(f.order, payload)
	f.mu.Unlock()
	if f.removeErr != nil {
		if err := f.removeErr(payload); err != nil {
			return nil, err
		}
	}
	return append([]byte("out:"), payload...), nil
}

func (f *fakeManager) processedOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	for i, p := range f.order {
		out[i] = string(p)
	}
	return out
}

func TestSubmitResolves(t *testing.T) {
	f := &fakeManager{}
	q := New(f, Options{})
	defer q.Close()

	res, err := q.Submit(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(res.Data) != "out:img" {
		t.Fatalf("unexpected data: %q", res.Data)
	}
	if res.RequestID == "" || res.Seq == 0 {
		t.Fatalf("expected request id and sequence, got %+v", res)
	}
}

func TestFIFOCompletionWithIsolatedFailure(t *testing.T) {
	boom := errors.New("mask head exploded")
	f := &fakeManager{
		removeDelay: 10 * time.Millisecond,
		removeErr: func(p []byte) error {
			if string(p) == "r2" {
				return boom
			}
			return nil
		},
	}
	q := New(f, Options{})
	defer q.Close()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, p := range []string{"r1", "r2", "r3"} {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, errs[i] = q.Submit(context.Background(), []byte(p), "image/png")
		}(i, p)
		// Stagger so enqueue order is deterministic.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("r1/r3 should resolve: %v %v", errs[0], errs[2])
	}
	if errs[1] == nil {
		t.Fatalf("r2 should reject")
	}
	order := f.processedOrder()
	if fmt.Sprint(order) != "[r1 r2 r3]" {
		t.Fatalf("expected FIFO processing, got %v", order)
	}
}

func TestAtMostOneInflight(t *testing.T) {
	f := &fakeManager{removeDelay: 10 * time.Millisecond}
	q := New(f, Options{})
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := q.Submit(context.Background(), []byte{byte('a' + i)}, "image/png"); err != nil {
				t.Errorf("submit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if max := f.maxInflight.Load(); max != 1 {
		t.Fatalf("expected at most one in-flight inference, saw %d", max)
	}
}

func TestEnsureFailureDoesNotStallQueue(t *testing.T) {
	notReady := errors.New("weights unavailable")
	f := &fakeManager{ensureErrs: []error{notReady, nil}}
	q := New(f, Options{})
	defer q.Close()

	if _, err := q.Submit(context.Background(), []byte("a"), "image/png"); !errors.Is(err, notReady) {
		t.Fatalf("expected ensure failure, got %v", err)
	}
	if _, err := q.Submit(context.Background(), []byte("b"), "image/png"); err != nil {
		t.Fatalf("queue stalled after a failing request: %v", err)
	}
}

func TestBackpressureTooBusy(t *testing.T) {
	f := &fakeManager{removeDelay: 200 * time.Millisecond}
	q := New(f, Options{MaxDepth: 1, MaxWait: 20 * time.Millisecond})
	defer q.Close()

	// One running, one queued, the third must bounce.
	go func() { _, _ = q.Submit(context.Background(), []byte("run"), "image/png") }()
	time.Sleep(10 * time.Millisecond)
	go func() { _, _ = q.Submit(context.Background(), []byte("wait"), "image/png") }()
	time.Sleep(10 * time.Millisecond)

	_, err := q.Submit(context.Background(), []byte("bounce"), "image/png")
	if err == nil || !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
}

func TestAbandonedCallerDoesNotCancelAdmittedWork(t *testing.T) {
	f := &fakeManager{removeDelay: 50 * time.Millisecond}
	q := New(f, Options{})
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := q.Submit(ctx, []byte("left-behind"), "image/png")
	if err != context.Canceled {
		t.Fatalf("expected canceled submit, got %v", err)
	}

	// The worker still finishes the admitted request.
	deadline := time.Now().Add(time.Second)
	for {
		if len(f.processedOrder()) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("admitted request was never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSequenceNumbersIncrease(t *testing.T) {
	f := &fakeManager{}
	q := New(f, Options{})
	defer q.Close()

	a, err := q.Submit(context.Background(), []byte("a"), "image/png")
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	b, err := q.Submit(context.Background(), []byte("b"), "image/png")
	if err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if b.Seq <= a.Seq {
		t.Fatalf("expected increasing sequence, got %d then %d", a.Seq, b.Seq)
	}
}

func TestCloseRejectsPendingAndStopsAdmission(t *testing.T) {
	f := &fakeManager{removeDelay: 100 * time.Millisecond}
	q := New(f, Options{MaxDepth: 4})

	go func() { _, _ = q.Submit(context.Background(), []byte("running"), "image/png") }()
	time.Sleep(10 * time.Millisecond)

	pendingErr := make(chan error, 1)
	go func() {
		_, err := q.Submit(context.Background(), []byte("pending"), "image/png")
		pendingErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	q.Close()

	if err := <-pendingErr; err == nil || !IsClosed(err) {
		t.Fatalf("expected closed error for pending request, got %v", err)
	}
	if _, err := q.Submit(context.Background(), []byte("late"), "image/png"); err == nil || !IsClosed(err) {
		t.Fatalf("expected closed error after Close, got %v", err)
	}
}
