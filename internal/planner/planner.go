package planner

import (
	"time"
)

// MaxRequestSpan is the longest range the transparency platform accepts in one request.
const MaxRequestSpan = 370 * 24 * time.Hour

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Watermark is the latest durable sample of one backend. Known is false when
// the backend has no data yet or could not be queried.
type Watermark struct {
	Backend string
	At      time.Time
	Known   bool
}

// NextWindow resumes from the least advanced backend, never earlier than the
// hour containing configuredStart. Unknown watermarks count as configuredStart
// so a backend without data drags the window back to the beginning. The start
// is truncated to the hour since upstream intervals are hourly.
func NextWindow(configuredStart time.Time, watermarks []Watermark, intervalDays int) Window {
	start := configuredStart.UTC()

	if len(watermarks) > 0 {
		least := time.Time{}
		for i, wm := range watermarks {
			at := start
			if wm.Known {
				at = wm.At.UTC()
			}
			if i == 0 || at.Before(least) {
				least = at
			}
		}
		if least.After(start) {
			start = least
		}
	}

	start = start.Truncate(time.Hour)
	if intervalDays <= 0 {
		intervalDays = 1
	}
	return Window{Start: start, End: start.AddDate(0, 0, intervalDays)}
}

// Chunk splits [start, stop) into consecutive windows no longer than maxSpan.
// A non-positive maxSpan yields a single window.
func Chunk(start, stop time.Time, maxSpan time.Duration) []Window {
	if !start.Before(stop) {
		return nil
	}
	if maxSpan <= 0 {
		return []Window{{Start: start, End: stop}}
	}

	var chunks []Window
	for chunkStart := start; chunkStart.Before(stop); {
		chunkEnd := chunkStart.Add(maxSpan)
		if chunkEnd.After(stop) {
			chunkEnd = stop
		}
		chunks = append(chunks, Window{Start: chunkStart, End: chunkEnd})
		chunkStart = chunkEnd
	}
	return chunks
}
