package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/cf-streak-bot/internal/codeforces"
	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/store"
)

// Checker classifies a handle's submissions against today in a timezone.
// *codeforces.Client implements it.
type Checker interface {
	Check(ctx context.Context, handle, tzName string) codeforces.Result
}

// Sender is a minimal interface the sweep needs to send a text message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Delivery is the outcome of one send attempt.
type Delivery int

const (
	Delivered Delivery = iota
	DeliveryFailed
)

// Report summarises one sweep.
type Report struct {
	RunID           string
	Slot            string
	Users           int
	NoHandle        int
	AlreadyNotified int
	Solved          int
	Sent            int
	Undelivered     int
}

// Service runs sweeps over all users for a slot.
type Service struct {
	repo   store.Repo
	dedup  *Dedup
	feed   Checker
	sender Sender
	slots  []domain.Slot
	log    *zap.Logger
	locks  *keyedMutex
}

// NewService wires a sweep service. slots are the configured daily slots; a solve
// found at one of them also settles every later one for the day.
func NewService(repo store.Repo, dedup *Dedup, feed Checker, sender Sender, slots []domain.Slot, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		dedup:  dedup,
		feed:   feed,
		sender: sender,
		slots:  slots,
		log:    log.With(zap.String("component", "reminder")),
		locks:  newKeyedMutex(),
	}
}

// Sweep evaluates every user for slot:
//   - no handle: skipped, no feed request, no message;
//   - already notified today for slot: skipped;
//   - solved today: slot and every later configured slot marked, no message;
//   - not solved (including any unclear feed answer): messaged, and marked only
//     when delivery succeeded so a later sweep retries.
//
// Storage errors abort the sweep and are returned with the partial report.
func (s *Service) Sweep(ctx context.Context, slot string) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Slot: slot}
	log := s.log.With(zap.String("run_id", rep.RunID), zap.String("slot", slot))

	entries, err := s.repo.All(ctx)
	if err != nil {
		return rep, fmt.Errorf("list users: %w", err)
	}
	log.Info("sweep started", zap.Int("users", len(entries)))

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Users++
		if err := s.sweepUser(ctx, log, slot, e.UserID, &rep); err != nil {
			if ctx.Err() == nil {
				log.Error("sweep aborted", zap.String("user_id", e.UserID), zap.Error(err))
			}
			return rep, err
		}
	}

	log.Info("sweep finished",
		zap.Int("users", rep.Users),
		zap.Int("no_handle", rep.NoHandle),
		zap.Int("already_notified", rep.AlreadyNotified),
		zap.Int("solved", rep.Solved),
		zap.Int("sent", rep.Sent),
		zap.Int("undelivered", rep.Undelivered),
	)
	return rep, nil
}

func (s *Service) sweepUser(ctx context.Context, log *zap.Logger, slot, userID string, rep *Report) error {
	unlock := s.locks.Lock(userID + "/" + slot)
	defer unlock()

	// Re-read under the lock; a command may have changed the record since All.
	rec, err := s.repo.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", userID, err)
	}
	if !rec.HasHandle() {
		rep.NoHandle++
		return nil
	}

	done, err := s.dedup.AlreadyNotifiedToday(ctx, userID, slot, rec.Timezone)
	if err != nil {
		return err
	}
	if done {
		rep.AlreadyNotified++
		return nil
	}

	result := s.check(ctx, log, rec)
	// A check cut short by shutdown says nothing about the user.
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == codeforces.Solved {
		rep.Solved++
		return s.dedup.MarkNotified(ctx, userID, s.settledBy(slot)...)
	}

	// Unavailable, Failed, Malformed and NotSolved all mean "remind".
	switch s.deliver(log, userID, reminderText(slot, rec.Handle)) {
	case Delivered:
		rep.Sent++
		return s.dedup.MarkNotified(ctx, userID, slot)
	default:
		// Left unmarked: the next sweep or a manual /streak covers it.
		rep.Undelivered++
		return nil
	}
}

// settledBy returns slot plus every configured slot later in the day.
func (s *Service) settledBy(slot string) []string {
	out := []string{slot}
	cur, err := domain.ParseSlot(slot)
	if err != nil {
		return out
	}
	for _, sl := range s.slots {
		if sl.Minutes > cur.Minutes {
			out = append(out, sl.String())
		}
	}
	return out
}

// check never lets a feed client panic escape the sweep.
func (s *Service) check(ctx context.Context, log *zap.Logger, rec *domain.UserRecord) (res codeforces.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("feed check panicked", zap.String("handle", rec.Handle), zap.Any("recovered", r))
			res = codeforces.Unavailable
		}
	}()
	res = s.feed.Check(ctx, rec.Handle, rec.Timezone)
	log.Debug("feed checked", zap.String("handle", rec.Handle), zap.Stringer("result", res))
	return res
}

func (s *Service) deliver(log *zap.Logger, userID, text string) Delivery {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		log.Warn("user id is not a chat id", zap.String("user_id", userID), zap.Error(err))
		return DeliveryFailed
	}
	if err := s.sender.SendMessage(chatID, text); err != nil {
		log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return DeliveryFailed
	}
	return Delivered
}

