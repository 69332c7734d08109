package coalesce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// Concurrent callers for one key share a single producer run.
func TestGroup_Do_Coalesces(t *testing.T) {
	var g Group[string]
	var calls atomic.Int64
	release := make(chan struct{})

	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "characters", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Every caller joins while the producer is blocked; only the first
	// starts it.
	const N = 5
	var eg errgroup.Group
	for i := 0; i < N; i++ {
		f, started := g.Register(ctx, "/characters", fn)
		if started != (i == 0) {
			t.Fatalf("caller %d: started=%v", i, started)
		}
		eg.Go(func() error {
			v, err := f.Wait(ctx)
			if err != nil {
				return err
			}
			if v != "characters" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}

	close(release)
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("producer must run once, got %d", got)
	}
	if g.Len() != 0 {
		t.Fatalf("settled flight must be deregistered, len=%d", g.Len())
	}
}

// After a flight settles the next call starts a new producer.
func TestGroup_FreshCallAfterSettle(t *testing.T) {
	var g Group[int]
	var calls atomic.Int64
	fn := func(context.Context) (int, error) { return int(calls.Add(1)), nil }

	ctx := context.Background()
	if v, _ := g.Do(ctx, "k", fn); v != 1 {
		t.Fatalf("first call want 1, got %d", v)
	}
	if v, _ := g.Do(ctx, "k", fn); v != 2 {
		t.Fatalf("second call must start a fresh producer, got %d", v)
	}
}

// A failed flight is shared by its waiters but never replayed.
func TestGroup_ErrorNotReplayed(t *testing.T) {
	var g Group[string]
	boom := errors.New("upstream down")
	var calls atomic.Int64

	_, err := g.Do(context.Background(), "k", func(context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}

	v, err := g.Do(context.Background(), "k", func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("retry after failure: v=%q err=%v", v, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("want 2 producer runs, got %d", calls.Load())
	}
}

// A caller that gives up does not stop the producer.
func TestGroup_CallerCancelDoesNotStopProducer(t *testing.T) {
	var g Group[string]
	release := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	f, started := g.Register(ctx, "k", func(pctx context.Context) (string, error) {
		<-release
		defer close(finished)
		if err := pctx.Err(); err != nil {
			return "", err
		}
		return "done", nil
	})
	if !started {
		t.Fatal("first Register must start the producer")
	}

	cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("waiter must see its own cancellation, got %v", err)
	}

	close(release)
	<-finished
	v, err := f.Wait(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("producer must complete with a live context: v=%q err=%v", v, err)
	}
}

// Ongoing exposes the in-flight call; followers do not start producers.
func TestGroup_OngoingAndRegister(t *testing.T) {
	var g Group[int]
	release := make(chan struct{})
	fn := func(context.Context) (int, error) { <-release; return 42, nil }

	if _, ok := g.Ongoing("k"); ok {
		t.Fatal("nothing in flight yet")
	}
	f1, started1 := g.Register(context.Background(), "k", fn)
	f2, started2 := g.Register(context.Background(), "k", fn)
	if !started1 || started2 || f1 != f2 {
		t.Fatalf("want one shared flight: started=%v,%v same=%v", started1, started2, f1 == f2)
	}
	if f, ok := g.Ongoing("k"); !ok || f != f1 {
		t.Fatal("Ongoing must return the in-flight call")
	}

	close(release)
	<-f1.Done()
	if _, ok := g.Ongoing("k"); ok {
		t.Fatal("settled flight must not be ongoing")
	}
}

// A panicking producer settles its flight with an error.
func TestGroup_ProducerPanic(t *testing.T) {
	var g Group[int]
	_, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
		panic("bad payload")
	})
	if err == nil || !strings.Contains(err.Error(), "bad payload") {
		t.Fatalf("want panic converted to error, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatal("panicked flight must be deregistered")
	}
}
