// Package refresh keeps a table snapshot current by polling a fetch function.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"monitor-dashboard/internal/observability/metrics"
)

// DefaultInterval is the polling period of every table.
const DefaultInterval = 30 * time.Second

const subscriberBuffer = 4

// ErrStopped is returned by Refresh after Stop.
var ErrStopped = errors.New("refresh: poller stopped")

// FetchFunc loads the full record collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Snapshot is an immutable published view of the records.
//
// Records always hold the last successful fetch. Err is set when the most recent fetch
// failed; FetchedAt is the time of the last successful fetch.
type Snapshot[T any] struct {
	Records    []T
	Generation uint64
	FetchedAt  time.Time
	Err        error
}

// Option configures a Poller.
type Option func(*options)

type options struct {
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// WithInterval overrides DefaultInterval.
func WithInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// WithLogger sets the poller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Poller fetches on a fixed interval and on demand, publishing only results newer than
// the last published one.
type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	lifetime context.Context
	cancel   context.CancelFunc
	manual   singleflight.Group

	mu          sync.Mutex
	nextGen     uint64
	inFlight    int
	published   Snapshot[T]
	hasSnapshot bool
	stopped     bool
	subscribers map[chan Snapshot[T]]struct{}
	hooks       []func(Snapshot[T])

	hookMu sync.Mutex
}

// New constructs a poller named after the table it feeds.
func New[T any](name string, fetch FetchFunc[T], opts ...Option) *Poller[T] {
	cfg := options{
		interval: DefaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Poller[T]{
		name:        name,
		fetch:       fetch,
		interval:    cfg.interval,
		logger:      cfg.logger.With("table", name),
		now:         cfg.now,
		lifetime:    lifetime,
		cancel:      cancel,
		subscribers: make(map[chan Snapshot[T]]struct{}),
	}
}

// Name returns the table name.
func (p *Poller[T]) Name() string {
	return p.name
}

// OnPublish registers a hook invoked, in generation order, after each publication.
// Hooks must not call Refresh.
func (p *Poller[T]) OnPublish(hook func(Snapshot[T])) {
	if hook == nil {
		return
	}
	p.mu.Lock()
	p.hooks = append(p.hooks, hook)
	p.mu.Unlock()
}

// Run fetches immediately and then on every interval tick until ctx is done or Stop is
// called. A tick that finds a fetch in flight is skipped.
func (p *Poller[T]) Run(ctx context.Context) error {
	release := context.AfterFunc(ctx, p.Stop)
	defer release()

	p.tick()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.lifetime.Done():
			return nil
		case <-ticker.C:
			p.tick()
		}
	}
}

// Refresh runs a fetch now and returns the latest snapshot. Concurrent calls share the
// fetch already in flight. The returned error is the fetch error, if any.
func (p *Poller[T]) Refresh(ctx context.Context) (Snapshot[T], error) {
	ch := p.manual.DoChan("refresh", func() (any, error) {
		return p.poll()
	})
	select {
	case <-ctx.Done():
		return Snapshot[T]{}, ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(Snapshot[T])
		return snap, res.Err
	}
}

// Latest returns the published snapshot and whether one exists yet.
func (p *Poller[T]) Latest() (Snapshot[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.hasSnapshot
}

// Loading reports whether a fetch is in flight.
func (p *Poller[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight > 0
}

// Subscribe registers a channel that receives each published snapshot. The latest
// snapshot, if any, is delivered first. Slow subscribers miss updates.
func (p *Poller[T]) Subscribe() chan Snapshot[T] {
	ch := make(chan Snapshot[T], subscriberBuffer)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		close(ch)
		return ch
	}
	if p.hasSnapshot {
		ch <- p.published
	}
	p.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (p *Poller[T]) Unsubscribe(ch chan Snapshot[T]) {
	if ch == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[ch]; !ok {
		return
	}
	delete(p.subscribers, ch)
	close(ch)
}

// Stop cancels any in-flight fetch and closes subscriber channels. Nothing is published
// after Stop returns.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for ch := range p.subscribers {
		close(ch)
	}
	clear(p.subscribers)
	p.mu.Unlock()
	p.cancel()
}

func (p *Poller[T]) tick() {
	p.mu.Lock()
	busy := p.inFlight > 0
	p.mu.Unlock()
	if busy {
		metrics.IncTickSkipped(p.name)
		p.logger.Debug("poll tick skipped, fetch in flight")
		return
	}
	_, _ = p.poll()
}

func (p *Poller[T]) poll() (Snapshot[T], error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return Snapshot[T]{}, ErrStopped
	}
	p.nextGen++
	gen := p.nextGen
	p.inFlight++
	p.mu.Unlock()

	records, err := p.fetch(p.lifetime)
	return p.publish(gen, records, err)
}

func (p *Poller[T]) publish(gen uint64, records []T, fetchErr error) (Snapshot[T], error) {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	p.mu.Lock()
	p.inFlight--
	if p.stopped {
		p.mu.Unlock()
		return Snapshot[T]{}, ErrStopped
	}
	if gen <= p.published.Generation {
		latest := p.published
		p.mu.Unlock()
		metrics.IncPollResult(p.name, metrics.ResultStale)
		p.logger.Debug("stale poll result discarded", "generation", gen, "published", latest.Generation)
		return latest, fetchErr
	}

	snap := Snapshot[T]{
		Records:    p.published.Records,
		Generation: gen,
		FetchedAt:  p.published.FetchedAt,
		Err:        fetchErr,
	}
	if fetchErr == nil {
		if records == nil {
			records = []T{}
		}
		snap.Records = records
		snap.FetchedAt = p.now()
	}
	p.published = snap
	p.hasSnapshot = true
	for ch := range p.subscribers {
		select {
		case ch <- snap:
		default:
			metrics.IncSubscriberDrop(p.name)
		}
	}
	hooks := append([]func(Snapshot[T]){}, p.hooks...)
	p.mu.Unlock()

	if fetchErr != nil {
		metrics.IncPollResult(p.name, metrics.ResultError)
		p.logger.Warn("poll failed", "generation", gen, "error", fetchErr)
	} else {
		metrics.IncPollResult(p.name, metrics.ResultSuccess)
		metrics.SetSnapshotRecords(p.name, len(snap.Records))
	}
	for _, hook := range hooks {
		hook(snap)
	}
	return snap, fetchErr
}
