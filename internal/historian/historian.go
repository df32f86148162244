// internal/historian/historian.go pops committed moves from the Redis queue
// and persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields queued move events. ok is false when timeout passed without one.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (ev models.MoveEvent, ok bool, err error)
}

// Sink persists batches and records abandoned games.
type Sink interface {
	InsertMoveEvents(ctx context.Context, events []models.MoveEvent) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error)
}

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	// InactivityTimeout is how long a game may go without a move before it is
	// marked abandoned.
	InactivityTimeout time.Duration
	CheckInterval     time.Duration
}

// Service batches move events from a Source into a Sink and marks games
// abandoned once they have been inactive for too long.
type Service struct {
	source Source
	sink   Sink
	log    logrus.FieldLogger
	opts   Options

	popTimeout   time.Duration
	lastActivity sync.Map // map[uuid.UUID]time.Time
	now          func() time.Time

	batchMu sync.Mutex
	batch   []models.MoveEvent
}

func New(source Source, sink Sink, opts Options, logger logrus.FieldLogger) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 10 * time.Minute
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Minute
	}
	return &Service{
		source:     source,
		sink:       sink,
		log:        logger,
		opts:       opts,
		popTimeout: 3 * time.Second,
		now:        time.Now,
		batch:      make([]models.MoveEvent, 0, opts.BatchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes whatever is still batched.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("uno-historian service started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })
	g.Go(func() error { return s.inactivityLoop(gctx) })
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("uno-historian shutting down")
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		ev, ok, err := s.source.Pop(ctx, s.popTimeout)
		if ok {
			s.record(ctx, ev)
			continue
		}
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, cache.ErrMalformedEvent):
			s.log.WithError(err).Warn("skipping invalid move event")
		case err != nil:
			s.log.WithError(err).Error("failed to pop move event")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, ev models.MoveEvent) {
	if ev.Status == models.StatusFinished {
		s.lastActivity.Delete(ev.GameID)
	} else {
		s.lastActivity.Store(ev.GameID, s.now())
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, ev)
	if len(s.batch) >= s.opts.BatchSize {
		s.flushLocked(ctx)
	}
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes the current batch in a single transaction.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked(ctx)
}

func (s *Service) flushLocked(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]models.MoveEvent, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]

	if err := s.sink.InsertMoveEvents(ctx, batchCopy); err != nil {
		s.log.WithError(err).WithField("count", len(batchCopy)).Error("failed to flush move events")
		return
	}
	s.log.WithField("count", len(batchCopy)).Debug("flushed move events")
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.CheckInactive(ctx)
		}
	}
}

// CheckInactive marks every game without a move for longer than the
// inactivity timeout as abandoned.
func (s *Service) CheckInactive(ctx context.Context) {
	now := s.now()
	s.lastActivity.Range(func(key, val any) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.InactivityTimeout {
			return true
		}

		changed, err := s.sink.MarkAbandoned(ctx, gameID)
		if err != nil {
			s.log.WithError(err).WithField("game_id", gameID).Error("failed to mark game abandoned")
			return true
		}
		s.lastActivity.Delete(gameID)
		if changed {
			s.log.WithField("game_id", gameID).Info("marked game abandoned due to inactivity")
		}
		return true
	})
}
