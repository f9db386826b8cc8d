package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/api/metrics"
	"github.com/nodi/console-identity/internal/core/ports"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	sendTimeout      = 15 * time.Second
)

// Dispatcher delivers notifications on a fixed set of workers so that mail
// latency never reaches the request that produced the message.
type Dispatcher struct {
	queue    chan ports.Message
	notifier ports.Notifier
	workers  int
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Non-positive sizes fall back to the
// defaults.
func NewDispatcher(workers, queueSize int, notifier ports.Notifier, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue:    make(chan ports.Message, queueSize),
		notifier: notifier,
		workers:  workers,
		log:      log,
	}
}

// Start launches the workers. When ctx is cancelled each worker delivers what
// is already queued and exits, after which Wait returns.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands msg to the workers without blocking. A full queue drops the
// message and returns false.
func (d *Dispatcher) Enqueue(msg ports.Message) bool {
	select {
	case d.queue <- msg:
		metrics.NotificationQueueDepth.Inc()
		return true
	default:
		metrics.NotificationsTotal.WithLabelValues(msg.Kind, "dropped").Inc()
		d.log.Error().Str("kind", msg.Kind).Msg("notification queue full, message dropped")
		return false
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx), id)
			return
		case msg := <-d.queue:
			metrics.NotificationQueueDepth.Dec()
			d.deliver(ctx, id, msg)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context, id int) {
	for {
		select {
		case msg := <-d.queue:
			metrics.NotificationQueueDepth.Dec()
			d.deliver(ctx, id, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, msg ports.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.notifier.Send(sendCtx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(msg.Kind, "failed").Inc()
		d.log.Error().Err(err).
			Str("kind", msg.Kind).
			Int("worker_id", id).
			Msg("notification delivery failed")
		return
	}
	metrics.NotificationsTotal.WithLabelValues(msg.Kind, "sent").Inc()
	d.log.Debug().Str("kind", msg.Kind).Int("worker_id", id).Msg("notification sent")
}
