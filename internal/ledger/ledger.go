// Package ledger owns the booking and downtime records. Every write runs the
// overlap checks against the persisted state inside one transaction, guarded
// by per-resource locks, and pushes admin-state side effects onto the
// registry.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meeting-resource-backend/config"
	"meeting-resource-backend/internal/events"
	"meeting-resource-backend/internal/lock"
	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

// Notifier is told when a room may have become available again.
type Notifier interface {
	Dispatch(roomID int64)
}

// Options configures a Service. Zero values fall back to in-process defaults.
type Options struct {
	Locker    lock.Locker
	Publisher events.Publisher
	Notifier  Notifier
	Logger    *logger.Logger
	Sequences config.SequencesConfig
	Now       func() time.Time
}

type Service struct {
	store     store.Store
	locker    lock.Locker
	publisher events.Publisher
	notifier  Notifier
	log       *logger.Logger
	seq       config.SequencesConfig
	now       func() time.Time
}

func New(st store.Store, opts Options) *Service {
	s := &Service{
		store:     st,
		locker:    opts.Locker,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		log:       logger.OrNop(opts.Logger),
		seq:       opts.Sequences,
		now:       opts.Now,
	}
	if s.locker == nil {
		s.locker = lock.NewMemoryLocker()
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.seq.Booking == "" {
		s.seq.Booking = "MB"
	}
	if s.seq.Maintenance == "" {
		s.seq.Maintenance = "MR"
	}
	return s
}

// guarded runs fn in a transaction while holding the locks for keys.
func (s *Service) guarded(ctx context.Context, keys []string, fn func(tx store.Store) error) error {
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("acquire locks %v: %w", keys, err)
	}
	defer unlock()
	return s.store.InTx(ctx, fn)
}

func (s *Service) code(ctx context.Context, tx store.Store, given, sequence, prefix string) (string, error) {
	if given != "" && given != "New" {
		return given, nil
	}
	return tx.NextCode(ctx, sequence, prefix)
}

func (s *Service) publish(typ string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, events.New(typ, s.now(), data)); err != nil {
		s.log.Warn("failed to publish event", "type", typ, "error", err)
	}
}

func (s *Service) notifyRoom(roomID int64) {
	if s.notifier != nil {
		s.notifier.Dispatch(roomID)
	}
}

// missing turns a store not-found error into a validation failure on c.
func missing(err error, c schedule.Constraint, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return schedule.Invalid(c, format, args...)
	}
	return err
}
