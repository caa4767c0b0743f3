package floatdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/metrics"

	"github.com/sirupsen/logrus"
)

const DefaultFlushInterval = time.Second

type Mode int

const (
	ModeBuffered Mode = iota
	ModeImmediate
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buffered":
		return ModeBuffered, nil
	case "immediate":
		return ModeImmediate, nil
	default:
		return ModeBuffered, fmt.Errorf("unknown ingest mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeImmediate {
		return "immediate"
	}
	return "buffered"
}

// BatchPersister is the sink the queue hands batches to.
type BatchPersister interface {
	Persist(ctx context.Context, batch []Pending) (Result, error)
}

// IngestQueue accepts observations from any number of producers. In buffered mode it
// keeps them in memory until the next tick; there is no bound on the backlog.
type IngestQueue struct {
	sink     BatchPersister
	mode     Mode
	interval time.Duration
	metrics  *metrics.Metrics
	log      *logrus.Entry

	mu      sync.Mutex
	pending []Pending

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewIngestQueue(sink BatchPersister, mode Mode, interval time.Duration, m *metrics.Metrics) *IngestQueue {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &IngestQueue{
		sink:     sink,
		mode:     mode,
		interval: interval,
		metrics:  m,
		log:      logger.WithComponent("ingest-queue"),
	}
}

// Add persists the observation right away in immediate mode and returns the write error.
// In buffered mode it only appends and never blocks on the store.
func (q *IngestQueue) Add(ctx context.Context, item codec.RawItem, price *int64) error {
	if q.mode == ModeImmediate {
		_, err := q.sink.Persist(ctx, []Pending{{Item: item, Price: price}})
		return err
	}

	q.mu.Lock()
	q.pending = append(q.pending, Pending{Item: item, Price: price})
	n := len(q.pending)
	q.mu.Unlock()

	q.metrics.PendingBacklog.Set(float64(n))
	return nil
}

// Take swaps the backlog for an empty one and returns what was there.
func (q *IngestQueue) Take() []Pending {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	q.metrics.PendingBacklog.Set(0)
	return batch
}

func (q *IngestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush hands the current backlog to the persister if there is one.
func (q *IngestQueue) Flush(ctx context.Context) error {
	batch := q.Take()
	if len(batch) == 0 {
		return nil
	}
	_, err := q.sink.Persist(ctx, batch)
	return err
}

// Start launches the periodic flush. It is a no-op in immediate mode or when already running.
func (q *IngestQueue) Start(ctx context.Context) {
	if q.mode != ModeBuffered {
		return
	}
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.loop(ctx, q.done)

	q.log.WithField("interval", q.interval.String()).Info("periodic flush started")
}

// Stop ends the periodic flush, waits for it and flushes whatever is still queued.
func (q *IngestQueue) Stop() {
	q.runMu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	q.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	// the loop may have exited on its own context before late producers finished
	if err := q.Flush(context.Background()); err != nil {
		q.log.WithError(err).WithField("pending", q.Len()).Error("flush on stop failed")
	}
	q.log.Info("periodic flush stopped")
}

func (q *IngestQueue) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := q.Flush(context.WithoutCancel(ctx)); err != nil {
				q.log.WithError(err).Error("final flush failed")
			}
			return
		case <-ticker.C:
			if err := q.Flush(ctx); err != nil {
				q.log.WithError(err).Warn("flush failed")
			}
		}
	}
}
