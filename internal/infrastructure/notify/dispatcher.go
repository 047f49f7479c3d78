// Package notify delivers user-facing notifications asynchronously so
// the reconcile and sweep paths never wait on a delivery channel.
package notify

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

type notification struct {
	Kind   ports.NotificationKind
	UserID string
	Params map[string]string
}

// Dispatcher implements ports.Notifier by routing notifications to a
// fixed set of workers using consistent hashing on the user id, which
// keeps per-user delivery ordered (a welcome never arrives after the
// expiry warning that followed it).
type Dispatcher struct {
	workers []chan notification
	sink    ports.Notifier
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher fanning out to sink with numWorkers
// sharded workers. If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.Notifier, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan notification, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan notification, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Notify enqueues one notification. It only fails when the responsible
// worker's buffer is full; delivery errors surface in the worker's log,
// not here.
func (d *Dispatcher) Notify(_ context.Context, kind ports.NotificationKind, userID string, params map[string]string) error {
	n := notification{Kind: kind, UserID: userID, Params: params}
	select {
	case d.workers[d.shardIndex(userID)] <- n:
		return nil
	default:
		return ports.ErrNotifyQueueFull
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := d.sink.Notify(ctx, n.Kind, n.UserID, n.Params); err != nil {
				d.log.Error().Err(err).
					Str("kind", string(n.Kind)).
					Str("user_id", n.UserID).
					Int("worker_id", id).
					Msg("notification delivery failed")
			}
		}
	}
}
