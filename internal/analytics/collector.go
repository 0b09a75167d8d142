package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector fans search events out to the local Aggregator and, when a
// Publisher is set, to Kafka in batches. Track never blocks: when the buffer
// is full the event is dropped and counted.
type Collector struct {
	publisher  Publisher
	aggregator *Aggregator
	metrics    *metrics.Metrics
	eventCh    chan SearchEvent
	batchSize  int
	interval   time.Duration
	dropped    atomic.Int64
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewCollector(publisher Publisher, aggregator *Aggregator, m *metrics.Metrics, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:  publisher,
		aggregator: aggregator,
		metrics:    m,
		eventCh:    make(chan SearchEvent, cfg.BufferSize),
		batchSize:  cfg.BatchSize,
		interval:   cfg.FlushInterval,
		logger:     slog.Default().With("component", "analytics-collector"),
		done:       make(chan struct{}),
	}
}

// Start launches the publish loop. It is a no-op without a Publisher.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publisher == nil || c.started {
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.interval,
	)
}

func (c *Collector) Track(event SearchEvent) {
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.drop(1)
		c.logger.Warn("analytics event dropped (buffer full)", "query", event.Query)
	}
}

// Dropped returns how many events never reached Kafka.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops the loop after a final flush of buffered events.
func (c *Collector) Close() {
	c.mu.Lock()
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, toKafka(event))
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case event := <-c.eventCh:
					batch = append(batch, toKafka(event))
				default:
					drained = true
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, batch)
			cancel()
			return
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.drop(len(batch))
		c.logger.Error("analytics batch dropped", "events", len(batch), "error", err)
	} else {
		c.logger.Debug("analytics batch flushed", "events", len(batch))
	}
	return batch[:0]
}

func (c *Collector) drop(n int) {
	c.dropped.Add(int64(n))
	if c.metrics != nil {
		c.metrics.AnalyticsDropped.Add(float64(n))
	}
}

func toKafka(event SearchEvent) kafka.Event {
	return kafka.Event{Key: event.Mode, Value: event}
}
