package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestProvisionerRunsOnce(t *testing.T) {
	var p Provisioner
	var calls int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func(context.Context) error {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("provision ran %d times, want 1", got)
	}
	if !p.Ready() {
		t.Error("expected provisioner to be ready")
	}

	// Subsequent calls never re-run provision.
	err := p.Do(context.Background(), func(context.Context) error {
		t.Error("provision ran after success")
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProvisionerSharesFailure(t *testing.T) {
	var p Provisioner
	boom := errors.New("boom")

	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("first caller got %v, want boom", err)
		}
	}()

	<-started
	waiters := 5
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Do(context.Background(), func(context.Context) error {
				return boom
			})
		}()
	}

	// Give the waiters time to block on the pending attempt.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("waiter got %v, want boom", err)
		}
	}
	if p.Ready() {
		t.Error("failed attempt must leave the guard unprovisioned")
	}
}

func TestProvisionerRetriesAfterFailure(t *testing.T) {
	var p Provisioner

	err := p.Do(context.Background(), func(context.Context) error {
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected first attempt to fail")
	}

	err = p.Do(context.Background(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !p.Ready() {
		t.Error("expected provisioner to be ready after retry")
	}
}

func TestProvisionerWaiterHonorsContext(t *testing.T) {
	var p Provisioner

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
