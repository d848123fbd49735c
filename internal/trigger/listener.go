// Package trigger turns store creation events into handler calls.
//
// Events arrive through Postgres NOTIFY and are at-least-once: anything still
// pending after RedeliverAfter is pushed again by the sweep, so handlers must
// treat repeats as no-ops.
package trigger

import (
	"context"
	"errors"
	"time"

	"paygate/pkg/database"
	"paygate/pkg/metrics"
	"paygate/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// HandlerFunc processes the row identified by id.
type HandlerFunc func(ctx context.Context, id string) error

// PendingSource lists rows whose creation event may have been lost.
type PendingSource interface {
	ListPendingIDs(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

// Route binds a notification channel to its handler and sweep source.
type Route struct {
	Channel string
	Handle  HandlerFunc
	Pending PendingSource
}

type event struct {
	channel string
	id      string
}

type Listener struct {
	notifier database.Notifier
	routes   map[string]Route
	channels []string
	cfg      utils.TriggerConfig
	now      func() time.Time
	log      *zap.Logger
}

func NewListener(notifier database.Notifier, cfg utils.TriggerConfig, log *zap.Logger, routes ...Route) *Listener {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}

	l := &Listener{
		notifier: notifier,
		routes:   make(map[string]Route, len(routes)),
		cfg:      cfg,
		now:      time.Now,
		log:      log.With(zap.String("component", "trigger")),
	}
	for _, r := range routes {
		l.routes[r.Channel] = r
		l.channels = append(l.channels, r.Channel)
	}
	return l
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	events := make(chan event, l.cfg.Workers*16)

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < l.cfg.Workers; i++ {
		g.Go(func() error {
			l.work(ctx, events)
			return nil
		})
	}

	g.Go(func() error {
		l.listen(ctx, events)
		return nil
	})

	if l.cfg.SweepInterval > 0 {
		g.Go(func() error {
			l.sweepLoop(ctx, events)
			return nil
		})
	}

	l.log.Info("Trigger listener started",
		zap.Strings("channels", l.channels),
		zap.Int("workers", l.cfg.Workers))

	err := g.Wait()
	l.log.Info("Trigger listener stopped")
	return err
}

func (l *Listener) listen(ctx context.Context, events chan<- event) {
	backoff := minBackoff
	for {
		err := l.notifier.Listen(ctx, l.channels, func(channel, payload string) {
			l.enqueue(ctx, events, event{channel: channel, id: payload})
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("listener returned")
		}

		l.log.Error("Notification listener failed, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		// Anything raised while disconnected is still pending.
		l.sweep(ctx, events)
	}
}

func (l *Listener) sweepLoop(ctx context.Context, events chan<- event) {
	// Catch up on rows created while the process was down.
	l.sweep(ctx, events)

	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(ctx, events)
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) sweep(ctx context.Context, events chan<- event) {
	cutoff := l.now().Add(-l.cfg.RedeliverAfter)
	for _, ch := range l.channels {
		r := l.routes[ch]
		if r.Pending == nil {
			continue
		}

		ids, err := r.Pending.ListPendingIDs(ctx, cutoff, l.cfg.SweepBatch)
		if err != nil {
			l.log.Error("Sweep failed", zap.Error(err), zap.String("channel", ch))
			continue
		}
		if len(ids) > 0 {
			l.log.Info("Redelivering pending rows", zap.String("channel", ch), zap.Int("count", len(ids)))
		}
		for _, id := range ids {
			if !l.enqueue(ctx, events, event{channel: ch, id: id}) {
				return
			}
		}
	}
}

func (l *Listener) enqueue(ctx context.Context, events chan<- event, ev event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Listener) work(ctx context.Context, events <-chan event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			l.dispatch(ctx, ev)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, ev event) {
	r, ok := l.routes[ev.channel]
	if !ok || ev.id == "" {
		l.log.Warn("Dropping unroutable event", zap.String("channel", ev.channel), zap.String("id", ev.id))
		return
	}

	if err := r.Handle(ctx, ev.id); err != nil {
		metrics.TriggerEvents.WithLabelValues(ev.channel, "error").Inc()
		l.log.Error("Event handler failed",
			zap.Error(err),
			zap.String("channel", ev.channel),
			zap.String("id", ev.id))
		return
	}
	metrics.TriggerEvents.WithLabelValues(ev.channel, "ok").Inc()
}
