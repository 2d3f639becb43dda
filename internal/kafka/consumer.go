package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

const (
	retryBase = 200 * time.Millisecond
	retryMax  = 10 * time.Second
)

func expBackoff(attempt int) time.Duration {
	d := retryBase
	for i := 0; i < attempt && d < retryMax; i++ {
		d *= 2
	}
	return min(d, retryMax)
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, backoff: expBackoff}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	// One worker per partition slot keeps each partition's commits in
	// offset order.
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 1024/c.workers+1)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.process(ctx, id, h, m) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error("commit failed", "worker", id, "topic", m.Topic, "offset", m.Offset, "error", err)
				}
			}
		}(i, jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[workerFor(m, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process retries h until it succeeds or ctx is done. Offsets are committed
// in order, so skipping a failed message would let a later commit move the
// group past it.
func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	for attempt := 0; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		wait := c.backoff(attempt)
		c.log.Error("handler failed", "worker", worker, "topic", m.Topic, "offset", m.Offset,
			"attempt", attempt+1, "retry_in", wait, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func workerFor(m kafka.Message, workers int) int {
	var h uint32
	for _, b := range []byte(m.Topic) {
		h = h*31 + uint32(b)
	}
	return int((h + uint32(m.Partition)) % uint32(workers))
}
