package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidSlot   = errors.New("invalid slot")
	ErrInvalidHandle = errors.New("invalid handle")
)

// Codeforces handles: 3..24 chars of latin letters, digits, '_', '-', '.'.
var handleRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,24}$`)

// ParseHandle trims s and checks it against the Codeforces handle alphabet.
func ParseHandle(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	if !handleRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return s, nil
}

// ParseSlot parses a reminder slot label "HH:MM".
func ParseSlot(s string) (Slot, error) {
	mins, err := parseHHMM(s)
	if err != nil {
		return Slot{}, fmt.Errorf("%w %q: %v", ErrInvalidSlot, s, err)
	}
	return Slot{Minutes: mins}, nil
}

// ParseSlots parses labels, rejecting duplicates. Order is preserved.
func ParseSlots(labels []string) ([]Slot, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no slots configured", ErrInvalidSlot)
	}
	seen := make(map[int]bool, len(labels))
	out := make([]Slot, 0, len(labels))
	for _, l := range labels {
		s, err := ParseSlot(l)
		if err != nil {
			return nil, err
		}
		if seen[s.Minutes] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidSlot, s)
		}
		seen[s.Minutes] = true
		out = append(out, s)
	}
	return out, nil
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}
