package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/swingfeed/internal/feed"
)

// Runner is anything discovery can run as a per-event worker.
type Runner interface {
	Run(ctx context.Context)
}

// Factory builds the worker for a newly discovered event.
type Factory func(eventID string) Runner

// Discovery keeps one worker per live event: it polls the live set on an
// interval, starts workers for events that appeared and cancels workers
// for events that ended. A reaped event's session is discarded so its
// dedup and signal state never leak into a later appearance.
type Discovery struct {
	source   feed.Source
	factory  Factory
	sessions *SessionStore
	interval time.Duration

	mu      sync.Mutex
	workers map[string]*workerHandle
	wg      sync.WaitGroup
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDiscovery(source feed.Source, factory Factory, sessions *SessionStore, interval time.Duration) *Discovery {
	return &Discovery{
		source:   source,
		factory:  factory,
		sessions: sessions,
		interval: interval,
		workers:  make(map[string]*workerHandle),
	}
}

// Run reconciles until the context is canceled, then stops every worker
// and waits for them to finish.
func (d *Discovery) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			d.stopAll()
			d.wg.Wait()
			log.Info("discovery stopped")
			return
		case <-ticker.C:
			d.Reconcile(ctx)
		}
	}
}

// Reconcile diffs the upstream live set against the running workers.
func (d *Discovery) Reconcile(ctx context.Context) {
	live := d.source.LiveEvents(ctx)
	liveSet := make(map[string]bool, len(live))
	for _, ev := range live {
		liveSet[ev.ID] = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ev := range live {
		if _, running := d.workers[ev.ID]; running {
			continue
		}
		d.startLocked(ctx, ev.ID)
	}
	for id, h := range d.workers {
		if liveSet[id] {
			continue
		}
		log.WithField("event", id).Info("event ended, stopping worker")
		h.cancel()
		delete(d.workers, id)
		d.sessions.Discard(id)
	}
}

func (d *Discovery) startLocked(ctx context.Context, eventID string) {
	log.WithField("event", eventID).Info("event live, starting worker")
	wctx, cancel := context.WithCancel(ctx)
	h := &workerHandle{cancel: cancel, done: make(chan struct{})}
	d.workers[eventID] = h

	worker := d.factory(eventID)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(h.done)
		worker.Run(wctx)
	}()
}

func (d *Discovery) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, h := range d.workers {
		h.cancel()
		delete(d.workers, id)
		d.sessions.Discard(id)
	}
}

// Running reports the ids of events with an active worker.
func (d *Discovery) Running() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.workers))
	for id := range d.workers {
		ids = append(ids, id)
	}
	return ids
}
