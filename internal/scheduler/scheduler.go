package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/reminder"
)

// Sweeper runs one pass over all users for a slot.
// reminder.Service implements this.
type Sweeper interface {
	Sweep(ctx context.Context, slot string) (reminder.Report, error)
}

// Scheduler fires each slot once per calendar day at its wall-clock time in one
// reference timezone. Slots are independent: a slow sweep delays only its own slot.
type Scheduler struct {
	sweeper Sweeper
	log     *zap.Logger
	slots   []domain.Slot
	loc     *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New creates a new Scheduler for slots evaluated in loc.
func New(sweeper Sweeper, log *zap.Logger, slots []domain.Slot, loc *time.Location) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		log:     log.With(zap.String("component", "scheduler")),
		slots:   slots,
		loc:     loc,
		now:     time.Now,
		after:   time.After,
	}
}

// Run starts one trigger per slot and blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Strings("slots", domain.Labels(s.slots)),
		zap.String("tz", s.loc.String()),
	)

	var wg sync.WaitGroup
	for _, slot := range s.slots {
		wg.Add(1)
		go func(slot domain.Slot) {
			defer wg.Done()
			s.runSlot(ctx, slot)
		}(slot)
	}
	wg.Wait()
	s.log.Info("scheduler stopping")
}

func (s *Scheduler) runSlot(ctx context.Context, slot domain.Slot) {
	next := slot.NextFire(s.now(), s.loc)
	for {
		s.log.Debug("next fire", zap.Stringer("slot", slot), zap.Time("at", next))

		wait := next.Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
		}

		s.fire(ctx, slot)

		// Schedule from the planned fire time so an early wake cannot fire the
		// same day twice; after a long stall, skip to the next future occurrence.
		from := s.now()
		if from.Before(next) {
			from = next
		}
		next = slot.NextFire(from, s.loc)
	}
}

func (s *Scheduler) fire(ctx context.Context, slot domain.Slot) {
	rep, err := s.sweeper.Sweep(ctx, slot.String())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("sweep failed",
			zap.Stringer("slot", slot),
			zap.String("run_id", rep.RunID),
			zap.Error(err),
		)
	}
}
