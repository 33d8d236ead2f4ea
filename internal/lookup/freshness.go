package lookup

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCutoff is returned when a freshness cutoff cannot be parsed.
var ErrInvalidCutoff = errors.New("invalid cache freshness cutoff")

var zonedCutoffLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// Layouts without an offset are read in the process's local zone.
var localCutoffLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FreshnessPolicy decides whether a cached entry may be served.
type FreshnessPolicy struct {
	// Cutoff is an absolute instant; entries created at or before it are
	// stale. Zero disables the check.
	Cutoff time.Time
	// MaxAge additionally bounds entry age relative to Now. Zero disables it.
	MaxAge time.Duration
	Now    func() time.Time
}

func (p FreshnessPolicy) IsFresh(createdAt time.Time) bool {
	if !p.Cutoff.IsZero() && !createdAt.After(p.Cutoff) {
		return false
	}
	if p.MaxAge > 0 {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		if now().Sub(createdAt) >= p.MaxAge {
			return false
		}
	}
	return true
}

// ParseCutoff turns a configured cutoff into an instant. Empty input means
// no cutoff. Besides absolute timestamps it accepts a signed Go duration
// relative to now, e.g. "-720h". Timestamps without an offset are local time.
func ParseCutoff(s string, now time.Time) (time.Time, error) {
	return parseCutoffIn(s, now, time.Local)
}

func parseCutoffIn(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	for _, layout := range zonedCutoffLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localCutoffLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCutoff, s)
}
