package domain

import (
	"errors"
	"fmt"
	"time"
)

// FallbackTZ is used when the configured default zone cannot be loaded.
const FallbackTZ = "Asia/Tashkent"

// DateLayout is the ISO calendar date format stored in LastNotified.
const DateLayout = "2006-01-02"

var ErrInvalidTimezone = errors.New("invalid timezone")

// Resolver maps stored or user-supplied zone names to usable locations.
// It never fails: unknown names resolve to the default zone.
type Resolver struct {
	def *time.Location
}

// NewResolver builds a resolver defaulting to name, then FallbackTZ, then UTC.
func NewResolver(name string) *Resolver {
	for _, n := range []string{name, FallbackTZ} {
		if loc, err := loadIANA(n); err == nil {
			return &Resolver{def: loc}
		}
	}
	return &Resolver{def: time.UTC}
}

// Default returns the default location.
func (r *Resolver) Default() *time.Location { return r.def }

// Resolve returns the location for name, or the default if name is not an IANA zone.
func (r *Resolver) Resolve(name string) *time.Location {
	loc, err := loadIANA(name)
	if err != nil {
		return r.def
	}
	return loc
}

// Name returns the zone name that Resolve(name) actually uses.
func (r *Resolver) Name(name string) string {
	return r.Resolve(name).String()
}

// Valid reports whether name is a recognised IANA zone identifier.
func (r *Resolver) Valid(name string) bool {
	_, err := loadIANA(name)
	return err == nil
}

// Today returns the calendar date of now in the zone resolved from name.
func (r *Resolver) Today(now time.Time, name string) string {
	return LocalDate(now, r.Resolve(name))
}

// ValidateTZ checks that the tz is a valid IANA location and returns its canonical name.
func ValidateTZ(tz string) (string, error) {
	loc, err := loadIANA(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// LocalDate formats the calendar date of t in loc as YYYY-MM-DD.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// LocalizeTime formats t in the zone resolved from tz as HH:MM.
func (r *Resolver) LocalizeTime(t time.Time, tz string) string {
	return t.In(r.Resolve(tz)).Format("15:04")
}

// loadIANA is time.LoadLocation minus the names it accepts that are not zone identifiers.
func loadIANA(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}
