package tax

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRate is applied when no single window covers an instant.
const DefaultRate = 24.0

// ErrOverlappingWindows is returned by Validate when two windows share an instant.
var ErrOverlappingWindows = errors.New("tax: overlapping windows")

// Window is a tax rate effective from Start until End (inclusive). A nil End
// leaves the window open.
type Window struct {
	Start time.Time
	End   *time.Time
	Rate  float64
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.End == nil {
		return true
	}
	return !t.After(*w.End)
}

// Resolve returns the rate of the single window containing t together with the
// number of matching windows. Zero or multiple matches yield fallback.
func Resolve(windows []Window, t time.Time, fallback float64) (float64, int) {
	matches := 0
	var rate float64
	for _, w := range windows {
		if w.Contains(t) {
			matches++
			rate = w.Rate
		}
	}
	if matches != 1 {
		return fallback, matches
	}
	return rate, matches
}

// Validate sorts a copy of windows by start and rejects adjacent pairs where the
// earlier window does not end strictly before the next one starts.
func Validate(windows []Window) error {
	sorted := sortedCopy(windows)
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if prev.End == nil {
			return fmt.Errorf("%w: open-ended window from %s is followed by window from %s",
				ErrOverlappingWindows, prev.Start.Format(time.RFC3339), next.Start.Format(time.RFC3339))
		}
		if !prev.End.Before(next.Start) {
			return fmt.Errorf("%w: window ending %s overlaps window starting %s",
				ErrOverlappingWindows, prev.End.Format(time.RFC3339), next.Start.Format(time.RFC3339))
		}
	}
	return nil
}

// Schedule is a validated, immutable set of tax windows.
type Schedule struct {
	windows     []Window
	defaultRate float64
	logger      zerolog.Logger
}

// NewSchedule validates windows and returns a resolver over them. A
// non-positive defaultRate falls back to DefaultRate.
func NewSchedule(windows []Window, defaultRate float64, logger zerolog.Logger) (*Schedule, error) {
	if err := Validate(windows); err != nil {
		return nil, err
	}
	if defaultRate <= 0 {
		defaultRate = DefaultRate
	}
	return &Schedule{
		windows:     sortedCopy(windows),
		defaultRate: defaultRate,
		logger:      logger.With().Str("component", "tax_schedule").Logger(),
	}, nil
}

// Resolve returns the tax percentage effective at t.
func (s *Schedule) Resolve(t time.Time) float64 {
	rate, matches := Resolve(s.windows, t, s.defaultRate)
	if matches != 1 {
		s.logger.Warn().Time("at", t).
			Int("matches", matches).
			Float64("default_rate", s.defaultRate).
			Msg("expected exactly one tax window, using default rate")
	}
	return rate
}

// Windows returns a copy of the configured windows ordered by start.
func (s *Schedule) Windows() []Window {
	return sortedCopy(s.windows)
}

// DefaultRate returns the fallback rate.
func (s *Schedule) DefaultRate() float64 {
	return s.defaultRate
}

func sortedCopy(windows []Window) []Window {
	out := make([]Window, len(windows))
	copy(out, windows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
