package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunFetchesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetched := make(chan struct{})
	go Run(ctx, "test", time.Hour, func(ctx context.Context) error {
		close(fetched)
		return nil
	})

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate fetch")
	}
}

func TestRunReschedules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		Run(ctx, "test", 10*time.Millisecond, func(ctx context.Context) error {
			if count.Add(1) == 3 {
				cancel()
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.EqualValues(t, 3, count.Load())
}

func TestRunNoFetchAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		Run(ctx, "test", 5*time.Millisecond, func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done
	after := count.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, count.Load(), "no fetch may run after the loop exits")
}

func TestRunContinuesAfterFetchError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		Run(ctx, "test", 5*time.Millisecond, func(ctx context.Context) error {
			if count.Add(1) >= 2 {
				cancel()
				return nil
			}
			return errors.New("transient")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not survive a fetch error")
	}
	assert.GreaterOrEqual(t, count.Load(), int32(2))
}
