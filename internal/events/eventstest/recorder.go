// Package eventstest provides an in-memory Emitter for tests.
package eventstest

import (
	"context"
	"sync"
)

type Emitted struct {
	Topic         string
	EventType     string
	CorrelationID string
	Payload       any
}

type Recorder struct {
	mu     sync.Mutex
	Events []Emitted
	Err    error
}

func (r *Recorder) Emit(_ context.Context, topic, eventType, correlationID string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, Emitted{Topic: topic, EventType: eventType, CorrelationID: correlationID, Payload: payload})
	return nil
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}
