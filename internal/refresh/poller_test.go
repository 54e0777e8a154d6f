package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// gatedFetch blocks each call until the test releases it.
type gatedFetch struct {
	mu      sync.Mutex
	calls   int
	started chan int
	gates   map[int]chan result
}

type result struct {
	records []string
	err     error
}

func newGatedFetch() *gatedFetch {
	return &gatedFetch{started: make(chan int, 16), gates: make(map[int]chan result)}
}

func (g *gatedFetch) gate(call int) chan result {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[call]
	if !ok {
		ch = make(chan result, 1)
		g.gates[call] = ch
	}
	return ch
}

func (g *gatedFetch) fetch(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	g.started <- call
	select {
	case res := <-g.gate(call):
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedFetch) release(call int, records []string, err error) {
	g.gate(call) <- result{records: records, err: err}
}

func (g *gatedFetch) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func waitStarted(t *testing.T, g *gatedFetch) int {
	t.Helper()
	select {
	case call := <-g.started:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch did not start")
		return 0
	}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	fixed := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	poller := New("monitors", func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	}, WithClock(func() time.Time { return fixed }))
	defer poller.Stop()

	if _, ok := poller.Latest(); ok {
		t.Fatalf("expected no snapshot before the first fetch")
	}
	snap, err := poller.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.Generation != 1 || len(snap.Records) != 2 || !snap.FetchedAt.Equal(fixed) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	latest, ok := poller.Latest()
	if !ok || latest.Generation != 1 {
		t.Fatalf("unexpected latest %+v", latest)
	}
}

func TestFetchErrorKeepsPreviousRecords(t *testing.T) {
	var fail atomic.Bool
	poller := New("alarms", func(ctx context.Context) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return []string{"x"}, nil
	})
	defer poller.Stop()

	first, err := poller.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	fail.Store(true)
	second, err := poller.Refresh(context.Background())
	if err == nil || second.Err == nil {
		t.Fatalf("expected fetch error")
	}
	if len(second.Records) != 1 || second.Records[0] != "x" {
		t.Fatalf("expected previous records, got %v", second.Records)
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Fatalf("failed fetch must not move the fetch time")
	}
	if second.Generation != 2 {
		t.Fatalf("expected generation 2, got %d", second.Generation)
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	gated := newGatedFetch()
	poller := New("monitors", gated.fetch)
	defer poller.Stop()

	firstDone := make(chan Snapshot[string], 1)
	go func() {
		snap, _ := poller.poll()
		firstDone <- snap
	}()
	if call := waitStarted(t, gated); call != 1 {
		t.Fatalf("expected call 1, got %d", call)
	}

	secondDone := make(chan Snapshot[string], 1)
	go func() {
		snap, _ := poller.poll()
		secondDone <- snap
	}()
	waitStarted(t, gated)

	gated.release(2, []string{"new"}, nil)
	newer := <-secondDone
	if newer.Generation != 2 || newer.Records[0] != "new" {
		t.Fatalf("unexpected newer snapshot %+v", newer)
	}

	gated.release(1, []string{"old"}, nil)
	<-firstDone
	latest, _ := poller.Latest()
	if latest.Generation != 2 || latest.Records[0] != "new" {
		t.Fatalf("stale result overwrote newer snapshot: %+v", latest)
	}
}

func TestManualRefreshesAreCoalesced(t *testing.T) {
	gated := newGatedFetch()
	poller := New("monitors", gated.fetch)
	defer poller.Stop()

	var wg sync.WaitGroup
	results := make(chan Snapshot[string], 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		snap, _ := poller.Refresh(context.Background())
		results <- snap
	}()
	waitStarted(t, gated)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, _ := poller.Refresh(context.Background())
			results <- snap
		}()
	}
	time.Sleep(50 * time.Millisecond)
	gated.release(1, []string{"a"}, nil)
	wg.Wait()
	close(results)

	if calls := gated.callCount(); calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}
	for snap := range results {
		if snap.Generation != 1 {
			t.Fatalf("expected shared generation 1, got %d", snap.Generation)
		}
	}
}

func TestTickSkippedWhileFetchInFlight(t *testing.T) {
	gated := newGatedFetch()
	poller := New("monitors", gated.fetch)
	defer poller.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = poller.Refresh(context.Background())
	}()
	waitStarted(t, gated)
	if !poller.Loading() {
		t.Fatalf("expected loading while fetch in flight")
	}

	poller.tick()
	if calls := gated.callCount(); calls != 1 {
		t.Fatalf("tick must not start a second fetch, got %d calls", calls)
	}
	gated.release(1, []string{"a"}, nil)
	<-done
	if poller.Loading() {
		t.Fatalf("expected idle after fetch")
	}
}

func TestRefreshHonorsCallerContext(t *testing.T) {
	gated := newGatedFetch()
	poller := New("monitors", gated.fetch)
	defer poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := poller.Refresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	gated.release(1, []string{"late"}, nil)
}

func TestStopCancelsInFlightFetchWithoutPublishing(t *testing.T) {
	gated := newGatedFetch()
	poller := New("monitors", gated.fetch)
	sub := poller.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := poller.Refresh(context.Background())
		done <- err
	}()
	waitStarted(t, gated)
	poller.Stop()

	if err := <-done; !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped error, got %v", err)
	}
	if _, ok := poller.Latest(); ok {
		t.Fatalf("nothing may be published after stop")
	}
	if _, open := <-sub; open {
		t.Fatalf("expected subscriber channel closed")
	}
	if _, err := poller.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped error after stop, got %v", err)
	}
	poller.Stop()
}

func TestSubscribersAndHooksReceiveSnapshots(t *testing.T) {
	poller := New("alarms", func(ctx context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	defer poller.Stop()

	var hooked []uint64
	poller.OnPublish(func(s Snapshot[string]) {
		hooked = append(hooked, s.Generation)
	})
	sub := poller.Subscribe()
	defer poller.Unsubscribe(sub)

	for i := 0; i < 2; i++ {
		if _, err := poller.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	for want := uint64(1); want <= 2; want++ {
		select {
		case snap := <-sub:
			if snap.Generation != want {
				t.Fatalf("expected generation %d, got %d", want, snap.Generation)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing snapshot %d", want)
		}
	}
	if len(hooked) != 2 || hooked[0] != 1 || hooked[1] != 2 {
		t.Fatalf("unexpected hook calls %v", hooked)
	}

	late := poller.Subscribe()
	defer poller.Unsubscribe(late)
	if snap := <-late; snap.Generation != 2 {
		t.Fatalf("late subscriber should get latest snapshot, got %d", snap.Generation)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	poller := New("alarms", func(ctx context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	defer poller.Stop()
	sub := poller.Subscribe()
	defer poller.Unsubscribe(sub)

	for i := 0; i < subscriberBuffer+3; i++ {
		if _, err := poller.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	if len(sub) != subscriberBuffer {
		t.Fatalf("expected full buffer, got %d", len(sub))
	}
}

func TestRunPollsUntilContextDone(t *testing.T) {
	var calls atomic.Int32
	poller := New("monitors", func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a"}, nil
	}, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected repeated polls, got %d", calls.Load())
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
	if _, err := poller.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected poller stopped with run context, got %v", err)
	}
}
