package diagnostic

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Reporter delivers events to their final destination.
type Reporter interface {
	Deliver(event Event)
}

// AsyncSink buffers events and hands them to a Reporter on a background goroutine. When the
// buffer is full the event is dropped and counted.
type AsyncSink struct {
	node     *snowflake.Node
	reporter Reporter
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

var _ Sink = (*AsyncSink)(nil)

// NewAsyncSink starts the delivery goroutine.
func NewAsyncSink(node *snowflake.Node, reporter Reporter, buffer int, logger *zap.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AsyncSink{
		node:     node,
		reporter: reporter,
		logger:   logger,
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Report stamps and enqueues event.
func (s *AsyncSink) Report(_ context.Context, event Event) {
	if event.ID == 0 && s.node != nil {
		event.ID = s.node.Generate().Int64()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Raw = Truncate(event.Raw)
	reportedCounter.WithLabelValues(event.Kind, string(event.Reason)).Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		droppedCounter.Inc()
		return
	}
	select {
	case s.events <- event:
	default:
		droppedCounter.Inc()
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("diagnostic sink closed before draining", zap.Int("pending", len(s.events)))
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for event := range s.events {
		s.deliver(event)
	}
}

func (s *AsyncSink) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("diagnostic reporter panicked", zap.Any("panic", r), zap.Int64("event_id", event.ID))
		}
	}()
	s.reporter.Deliver(event)
}
