package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *collectSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *collectSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *collectSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *collectSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// blockSink parks inside Consume until released, so tests can fill the hub
// buffer deterministically.
type blockSink struct {
	collectSink
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func newBlockSink() *blockSink {
	return &blockSink{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockSink) Consume(ctx context.Context, batch []Event) error {
	s.startedOnce.Do(func() { close(s.started) })
	<-s.release
	return s.collectSink.Consume(ctx, batch)
}

func testEvent(stage Stage) Event {
	return Event{
		RunID: UUIDToBytes(uuid.MustParse("5f9c7a1e-0d6b-7000-8000-0123456789ab")),
		TS:    time.Now().UTC(),
		Stage: stage,
	}
}

func TestHub_CloseDeliversEverythingEmitted(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)
	for i := 0; i < 20; i++ {
		hub.Emit(testEvent(StageRunStart))
	}
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, sink.snapshot(), 20)
	require.True(t, sink.isClosed())
	require.Zero(t, hub.Dropped())
}

func TestHub_FlushesWhenBatchFills(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Hour}, sink)
	defer hub.Close(context.Background())

	hub.Emit(testEvent(StageRunStart))
	hub.Emit(testEvent(StageRunDone))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHub_FlushesOnTimer(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	hub := NewHub(Config{MaxBatchWait: 20 * time.Millisecond}, sink)
	defer hub.Close(context.Background())

	hub.Emit(testEvent(StageRunStart))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHub_EmitNeverBlocksWhenBufferIsFull(t *testing.T) {
	t.Parallel()

	sink := newBlockSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 1, MaxBatchWait: time.Hour}, sink)

	// First event reaches the sink and parks there, wedging the consumer.
	hub.Emit(testEvent(StageRunStart))
	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the first batch")
	}

	// Four more fill the buffer; the fifth has nowhere to go.
	for i := 0; i < 5; i++ {
		hub.Emit(testEvent(StageRunStart))
	}
	require.Equal(t, int64(1), hub.Dropped())

	close(sink.release)
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.snapshot(), 5)
}

func TestHub_DiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageRunStart}) // missing run id and timestamp
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.snapshot())
	require.Zero(t, hub.Dropped(), "invalid events are discarded, not dropped")
}

func TestHub_EmitAfterCloseIsIgnored(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(testEvent(StageRunStart))
	require.Empty(t, sink.snapshot())
}

func TestEvent_Validate(t *testing.T) {
	t.Parallel()

	valid := testEvent(StageRunStart)
	require.NoError(t, valid.Validate())

	missingID := valid
	missingID.RunID = [16]byte{}
	require.Error(t, missingID.Validate())

	settled := valid
	settled.Stage = StageMatchSettled
	require.Error(t, settled.Validate(), "settled events need a match id and state")
	settled.MatchID = "m1"
	settled.State = "complete"
	require.NoError(t, settled.Validate())

	fetch := valid
	fetch.Stage = StageFetchDone
	require.Error(t, fetch.Validate())
	fetch.Outcome = "success"
	require.NoError(t, fetch.Validate())

	unknown := valid
	unknown.Stage = Stage("SOMETHING_ELSE")
	require.Error(t, unknown.Validate())
}

func TestEvent_RunUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("5f9c7a1e-0d6b-7000-8000-0123456789ab")
	evt := Event{RunID: UUIDToBytes(id)}
	require.Equal(t, id, evt.RunUUID())
}
