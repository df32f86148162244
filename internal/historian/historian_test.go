// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves queued events, then reports empty pops.
type fakeSource struct {
	mu     sync.Mutex
	events []models.MoveEvent
	errs   []error
}

func (f *fakeSource) Pop(ctx context.Context, timeout time.Duration) (models.MoveEvent, bool, error) {
	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return models.MoveEvent{}, false, err
	}
	if len(f.events) > 0 {
		ev := f.events[0]
		f.events = f.events[1:]
		f.mu.Unlock()
		return ev, true, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return models.MoveEvent{}, false, ctx.Err()
	case <-time.After(timeout):
		return models.MoveEvent{}, false, nil
	}
}

type fakeSink struct {
	mu        sync.Mutex
	batches   [][]models.MoveEvent
	abandoned []uuid.UUID
	insertErr error
}

func (f *fakeSink) InsertMoveEvents(_ context.Context, events []models.MoveEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakeSink) MarkAbandoned(_ context.Context, gameID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, gameID)
	return true, nil
}

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func moveEvent(gameID uuid.UUID, turn int, status models.GameStatusKind) models.MoveEvent {
	return models.MoveEvent{
		MoveRecord: models.MoveRecord{GameID: gameID, PlayerID: uuid.New(), Action: models.ActionDrawnAndPassed, TurnNumber: turn},
		Status:     status,
		Timestamp:  time.Now().UnixMilli(),
	}
}

func TestFlushesFullBatches(t *testing.T) {
	sink := &fakeSink{}
	s := New(&fakeSource{}, sink, Options{BatchSize: 2, FlushInterval: time.Hour}, quietLogger())
	ctx := context.Background()
	gameID := uuid.New()

	s.record(ctx, moveEvent(gameID, 1, models.StatusOngoing))
	assert.Zero(t, sink.total())
	s.record(ctx, moveEvent(gameID, 2, models.StatusOngoing))
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 2)

	s.record(ctx, moveEvent(gameID, 3, models.StatusOngoing))
	s.Flush(ctx)
	assert.Len(t, sink.batches, 2)
	assert.Equal(t, 3, sink.total())

	s.Flush(ctx)
	assert.Len(t, sink.batches, 2, "an empty batch is not written")
}

func TestFailedFlushIsLoggedNotFatal(t *testing.T) {
	sink := &fakeSink{insertErr: errors.New("db down")}
	s := New(&fakeSource{}, sink, Options{BatchSize: 1}, quietLogger())
	s.record(context.Background(), moveEvent(uuid.New(), 1, models.StatusOngoing))
	assert.Empty(t, s.batch)
}

func TestRunDrainsSourceAndFlushesOnShutdown(t *testing.T) {
	gameID := uuid.New()
	src := &fakeSource{
		errs: []error{cache.ErrMalformedEvent},
		events: []models.MoveEvent{
			moveEvent(gameID, 1, models.StatusOngoing),
			moveEvent(gameID, 2, models.StatusOngoing),
			moveEvent(gameID, 3, models.StatusFinished),
		},
	}
	sink := &fakeSink{}
	s := New(src, sink, Options{BatchSize: 100, FlushInterval: time.Hour}, quietLogger())
	s.popTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.events) == 0
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, sink.total())
	_, tracked := s.lastActivity.Load(gameID)
	assert.False(t, tracked, "finished games are no longer watched for inactivity")
}

func TestCheckInactiveMarksStaleGames(t *testing.T) {
	sink := &fakeSink{}
	s := New(&fakeSource{}, sink, Options{BatchSize: 10, InactivityTimeout: time.Minute}, quietLogger())
	ctx := context.Background()

	start := time.Now()
	s.now = func() time.Time { return start }
	stale, fresh := uuid.New(), uuid.New()
	s.record(ctx, moveEvent(stale, 1, models.StatusOngoing))

	s.now = func() time.Time { return start.Add(50 * time.Second) }
	s.record(ctx, moveEvent(fresh, 1, models.StatusOngoing))

	s.now = func() time.Time { return start.Add(90 * time.Second) }
	s.CheckInactive(ctx)
	assert.Equal(t, []uuid.UUID{stale}, sink.abandoned)

	s.CheckInactive(ctx)
	assert.Len(t, sink.abandoned, 1, "a game is only marked once")
}
