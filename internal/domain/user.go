package domain

import (
	"encoding/json"
	"time"
)

// UserRecord is the per-user tracking state.
type UserRecord struct {
	Handle       string            // Codeforces handle; empty until /sethandle
	Timezone     string            // IANA name, resolved through Resolver before use
	LastNotified map[string]string // slot label -> YYYY-MM-DD
	CreatedAt    time.Time         // UTC, zero when the backend does not track it
	UpdatedAt    time.Time         // UTC, zero when the backend does not track it
}

// Entry pairs a record with its user id for sweeps.
type Entry struct {
	UserID string
	Record *UserRecord
}

// NewUserRecord returns a placeholder record in the given zone.
func NewUserRecord(tz string) *UserRecord {
	return &UserRecord{Timezone: tz, LastNotified: map[string]string{}}
}

// HasHandle reports whether the user can be tracked.
func (u *UserRecord) HasHandle() bool {
	return u != nil && u.Handle != ""
}

// Clone returns a deep copy.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.LastNotified = make(map[string]string, len(u.LastNotified))
	for k, v := range u.LastNotified {
		c.LastNotified[k] = v
	}
	return &c
}

// recordJSON is the persisted wire form, shared with the original user_data.json.
type recordJSON struct {
	Handle       *string           `json:"handle"`
	Timezone     string            `json:"timezone,omitempty"`
	LastNotified map[string]string `json:"last_notified"`
}

// MarshalRecord encodes u in the persisted wire form.
func MarshalRecord(u *UserRecord) ([]byte, error) {
	return json.Marshal(toWire(u))
}

// UnmarshalRecord decodes the wire form. Missing fields default:
// timezone to defaultTZ, last_notified to an empty map.
func UnmarshalRecord(data []byte, defaultTZ string) (*UserRecord, error) {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w, defaultTZ), nil
}

// MarshalSnapshot encodes the full user map as one indented JSON object keyed by user id.
func MarshalSnapshot(records map[string]*UserRecord) ([]byte, error) {
	out := make(map[string]recordJSON, len(records))
	for id, u := range records {
		out[id] = toWire(u)
	}
	return json.MarshalIndent(out, "", "  ")
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot or by the legacy bot.
func UnmarshalSnapshot(data []byte, defaultTZ string) (map[string]*UserRecord, error) {
	var raw map[string]recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]*UserRecord, len(raw))
	for id, w := range raw {
		out[id] = fromWire(w, defaultTZ)
	}
	return out, nil
}

func toWire(u *UserRecord) recordJSON {
	w := recordJSON{Timezone: u.Timezone, LastNotified: u.LastNotified}
	if u.Handle != "" {
		h := u.Handle
		w.Handle = &h
	}
	if w.LastNotified == nil {
		w.LastNotified = map[string]string{}
	}
	return w
}

func fromWire(w recordJSON, defaultTZ string) *UserRecord {
	u := NewUserRecord(w.Timezone)
	if u.Timezone == "" {
		u.Timezone = defaultTZ
	}
	if w.Handle != nil {
		u.Handle = *w.Handle
	}
	for k, v := range w.LastNotified {
		u.LastNotified[k] = v
	}
	return u
}
