// Package reminder decides which users are owed a reminder for a slot and sends it
// at most once per slot per local day.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/store"
)

// MarkZone selects which calendar day MarkNotified records.
type MarkZone string

const (
	// MarkUserZone records today's date in the user's own timezone, the same zone
	// AlreadyNotifiedToday reads with.
	MarkUserZone MarkZone = "user"
	// MarkReferenceZone records today's date in the scheduler's reference zone.
	// Users far west of the reference zone can then be skipped on the next day.
	MarkReferenceZone MarkZone = "reference"
)

// ParseMarkZone validates a configured mark zone.
func ParseMarkZone(s string) (MarkZone, error) {
	switch z := MarkZone(s); z {
	case MarkUserZone, MarkReferenceZone:
		return z, nil
	default:
		return "", fmt.Errorf("unknown mark zone %q (want user|reference)", s)
	}
}

// Dedup answers "already notified today" per (user, slot) and records notifications.
type Dedup struct {
	repo      store.Repo
	tz        *domain.Resolver
	reference *time.Location
	markZone  MarkZone
	now       func() time.Time
}

// NewDedup creates the engine. reference is the scheduler's zone.
func NewDedup(repo store.Repo, tz *domain.Resolver, reference *time.Location, markZone MarkZone) *Dedup {
	if markZone == "" {
		markZone = MarkUserZone
	}
	return &Dedup{repo: repo, tz: tz, reference: reference, markZone: markZone, now: time.Now}
}

// AlreadyNotifiedToday reports whether slot was marked on today's date in tzName.
func (d *Dedup) AlreadyNotifiedToday(ctx context.Context, userID, slot, tzName string) (bool, error) {
	u, err := d.repo.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", userID, err)
	}
	day, ok := u.LastNotified[slot]
	if !ok {
		return false, nil
	}
	return day == d.tz.Today(d.now(), tzName), nil
}

// MarkNotified records slots as handled today in one write. Repeating it within the
// day is harmless.
func (d *Dedup) MarkNotified(ctx context.Context, userID string, slots ...string) error {
	now := d.now()
	_, err := d.repo.Upsert(ctx, userID, func(u *domain.UserRecord) {
		if u.LastNotified == nil {
			u.LastNotified = make(map[string]string)
		}
		day := d.markDay(now, u)
		for _, slot := range slots {
			u.LastNotified[slot] = day
		}
	})
	if err != nil {
		return fmt.Errorf("mark %s/%v: %w", userID, slots, err)
	}
	return nil
}

func (d *Dedup) markDay(now time.Time, u *domain.UserRecord) string {
	if d.markZone == MarkReferenceZone {
		return domain.LocalDate(now, d.reference)
	}
	return d.tz.Today(now, u.Timezone)
}
