package diagnostic

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingReporter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingReporter) Deliver(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingReporter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestAsyncSinkDeliversStampedEvents(t *testing.T) {
	reporter := &recordingReporter{}
	sink := NewAsyncSink(newNode(t), reporter, 8, zap.NewNop())

	sink.Report(context.Background(), Event{Kind: "qr_profile", Reason: ReasonInvalidSignature, Raw: strings.Repeat("x", 2000)})
	sink.Report(context.Background(), Event{Kind: "share_back", Reason: ReasonMalformed})
	require.NoError(t, sink.Close(context.Background()))

	events := reporter.Events()
	require.Len(t, events, 2)
	require.NotZero(t, events[0].ID)
	require.NotEqual(t, events[0].ID, events[1].ID)
	require.False(t, events[0].OccurredAt.IsZero())
	require.Len(t, events[0].Raw, MaxRawLength)
}

type blockingReporter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingReporter) Deliver(Event) {
	r.once.Do(func() { close(r.started) })
	<-r.release
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	reporter := &blockingReporter{started: make(chan struct{}), release: make(chan struct{})}
	sink := NewAsyncSink(newNode(t), reporter, 1, zap.NewNop())
	before := testutil.ToFloat64(droppedCounter)

	sink.Report(context.Background(), Event{Reason: ReasonExpired})
	<-reporter.started
	sink.Report(context.Background(), Event{Reason: ReasonExpired})
	sink.Report(context.Background(), Event{Reason: ReasonExpired})

	require.Equal(t, before+1, testutil.ToFloat64(droppedCounter))

	close(reporter.release)
	require.NoError(t, sink.Close(context.Background()))
}

func TestAsyncSinkAfterClose(t *testing.T) {
	sink := NewAsyncSink(newNode(t), &recordingReporter{}, 1, zap.NewNop())
	require.NoError(t, sink.Close(context.Background()))
	require.NoError(t, sink.Close(context.Background()))

	before := testutil.ToFloat64(droppedCounter)
	sink.Report(context.Background(), Event{Reason: ReasonReplayed})
	require.Equal(t, before+1, testutil.ToFloat64(droppedCounter))
}

func TestAsyncSinkCountsByReason(t *testing.T) {
	sink := NewAsyncSink(newNode(t), &recordingReporter{}, 4, zap.NewNop())
	counter := reportedCounter.WithLabelValues("email_signature", string(ReasonKindMismatch))
	before := testutil.ToFloat64(counter)

	sink.Report(context.Background(), Event{Kind: "email_signature", Reason: ReasonKindMismatch})
	require.NoError(t, sink.Close(context.Background()))
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestZapReporter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reporter := NewZapReporter(zap.New(core))

	reporter.Deliver(Event{ID: 7, Kind: "qr_profile", Reason: ReasonExpired, Raw: "abc", OccurredAt: time.Now()})

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "capability rejected", entries[0].Message)
	require.Equal(t, "diagnostic", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	require.Equal(t, "expired", fields["reason"])
	require.Equal(t, int64(7), fields["event_id"])
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "short", Truncate("short"))

	raw := strings.Repeat("a", MaxRawLength-1) + "é"
	out := Truncate(raw + "tail")
	require.LessOrEqual(t, len(out), MaxRawLength)
	require.True(t, strings.HasSuffix(out, "a"))
}
