package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func testConsumer() *Consumer {
	return &Consumer{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		backoff: func(int) time.Duration { return time.Millisecond },
	}
}

func TestProcessRetriesUntilHandlerSucceeds(t *testing.T) {
	c := testConsumer()
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis down")
		}
		return nil
	}

	assert.True(t, c.process(context.Background(), 0, h, kafka.Message{Offset: 7}))
	assert.Equal(t, 3, calls)
}

func TestProcessStopsOnShutdownWithoutCommitting(t *testing.T) {
	c := testConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("still failing")
	}

	assert.False(t, c.process(ctx, 0, h, kafka.Message{Offset: 7}))
	assert.Equal(t, 2, calls)
}

func TestExpBackoffIsCapped(t *testing.T) {
	assert.Equal(t, retryBase, expBackoff(0))
	assert.Equal(t, 2*retryBase, expBackoff(1))
	assert.Equal(t, retryMax, expBackoff(50))
}

func TestWorkerForPinsPartitions(t *testing.T) {
	const workers = 4
	seen := map[int]bool{}
	for p := 0; p < 16; p++ {
		m := kafka.Message{Topic: "orders.events", Partition: p, Offset: int64(p)}
		w := workerFor(m, workers)
		assert.GreaterOrEqual(t, w, 0)
		assert.Less(t, w, workers)
		m.Offset += 100
		assert.Equal(t, w, workerFor(m, workers), "later offsets of a partition stay on its worker")
		seen[w] = true
	}
	assert.Len(t, seen, workers)
}
