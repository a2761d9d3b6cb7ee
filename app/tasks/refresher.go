package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/kingsfeeds/app/metrics"
)

const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"

	refreshKey = "feed"
)

var _ RefresherInterface = (*Refresher)(nil)

// Refresher keeps the latest successful feed result for interactive consumers.
// Concurrent triggers share one in-flight load, so the snapshot has a single
// writer at any time.
type Refresher struct {
	loader   Loader
	interval time.Duration
	current  atomic.Pointer[Snapshot]
	group    singleflight.Group
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRefresher creates a refresher. A non-positive interval disables the
// periodic timer; Start still performs the initial load.
func NewRefresher(loader Loader, interval time.Duration) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Refresher{
		loader:   loader,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *Refresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.trigger(TriggerStartup)

		if r.interval <= 0 {
			slog.Debug("Periodic refresh disabled")
			return
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.trigger(TriggerInterval)
			}
		}
	}()
}

func (r *Refresher) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Snapshot returns the current state; nil before the first attempt finishes.
func (r *Refresher) Snapshot() *Snapshot {
	return r.current.Load()
}

// Refresh triggers a manual load, joining one already in flight. The load
// itself runs on the refresher's context, so a caller giving up does not
// cancel it for others.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	return r.run(ctx, TriggerManual)
}

func (r *Refresher) trigger(trigger string) {
	if _, err := r.run(r.ctx, trigger); err != nil {
		slog.Warn("Refresh failed", "trigger", trigger, "error", err)
	}
}

func (r *Refresher) run(ctx context.Context, trigger string) (*Snapshot, error) {
	ch := r.group.DoChan(refreshKey, func() (any, error) {
		return r.loadAndStore(trigger)
	})

	select {
	case res := <-ch:
		if res.Shared {
			slog.Debug("Refresh joined in-flight load", "trigger", trigger)
		}
		snapshot, _ := res.Val.(*Snapshot)
		return snapshot, res.Err
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

func (r *Refresher) loadAndStore(trigger string) (*Snapshot, error) {
	start := time.Now()
	result, err := r.loader.Load(r.ctx)
	now := time.Now()

	previous := r.current.Load()

	if err != nil {
		// Shutdown cancellations are not feed failures.
		if r.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return previous, err
		}

		next := previous.withFailure(err, now)
		r.current.Store(next)
		metrics.RecordRefresh(trigger, "error", now.Unix())

		slog.Error("Task completed",
			"type", "refresh_feed",
			"trigger", trigger,
			"duration", now.Sub(start),
			"stale", next.Stale(),
			"error", err)

		return next, err
	}

	next := previous.withSuccess(result, now)
	r.current.Store(next)
	metrics.RecordRefresh(trigger, "ok", now.Unix())

	slog.Info("Task completed",
		"type", "refresh_feed",
		"trigger", trigger,
		"duration", now.Sub(start),
		"items", len(result.Items),
		"generation", next.Generation)

	return next, nil
}
