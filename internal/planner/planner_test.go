package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return d0.AddDate(0, 0, n) }

func TestNextWindowResumesFromLaggard(t *testing.T) {
	w := NextWindow(d0, []Watermark{
		{Backend: "clickhouse", At: day(5), Known: true},
		{Backend: "timescale", At: day(2), Known: true},
	}, 1)

	assert.Equal(t, day(2), w.Start)
	assert.Equal(t, day(3), w.End)
}

func TestNextWindowUnknownWatermarkUsesConfiguredStart(t *testing.T) {
	w := NextWindow(d0, []Watermark{
		{Backend: "clickhouse", At: day(5), Known: true},
		{Backend: "timescale"},
	}, 2)

	assert.Equal(t, d0, w.Start)
	assert.Equal(t, day(2), w.End)
}

func TestNextWindowNeverBeforeConfiguredStart(t *testing.T) {
	w := NextWindow(day(10), []Watermark{
		{Backend: "clickhouse", At: day(5), Known: true},
		{Backend: "timescale", At: day(7), Known: true},
	}, 1)

	assert.Equal(t, day(10), w.Start)
}

func TestNextWindowWithoutBackends(t *testing.T) {
	w := NextWindow(day(3), nil, 0)
	assert.Equal(t, day(3), w.Start)
	assert.Equal(t, day(4), w.End)
}

func TestNextWindowTruncatesToHour(t *testing.T) {
	w := NextWindow(d0, []Watermark{
		{Backend: "timescale", At: day(1).Add(21*time.Hour + 45*time.Minute), Known: true},
	}, 1)

	assert.Equal(t, day(1).Add(21*time.Hour), w.Start)
}

func TestNextWindowConfiguredStartOffTheHour(t *testing.T) {
	configured := d0.Add(30 * time.Minute)

	w := NextWindow(configured, []Watermark{{Backend: "timescale"}}, 1)
	assert.Equal(t, d0, w.Start, "start falls back to the hour containing configuredStart")
	assert.Equal(t, day(1), w.End)

	w = NextWindow(configured, []Watermark{{Backend: "timescale", At: d0.Add(10 * time.Minute), Known: true}}, 1)
	assert.Equal(t, d0, w.Start)
}

func TestChunkSplitsLongRange(t *testing.T) {
	span := 370 * 24 * time.Hour
	chunks := Chunk(d0, day(800), span)
	require.Len(t, chunks, 3)

	assert.Equal(t, d0, chunks[0].Start)
	assert.Equal(t, day(800), chunks[len(chunks)-1].End)
	for i, c := range chunks {
		assert.LessOrEqual(t, c.Duration(), span)
		if i > 0 {
			assert.Equal(t, chunks[i-1].End, c.Start, "chunk %d must start where the previous ended", i)
		}
	}
	assert.Equal(t, 60*24*time.Hour, chunks[2].Duration())
}

func TestChunkExactMultiple(t *testing.T) {
	chunks := Chunk(d0, day(4), 48*time.Hour)
	require.Len(t, chunks, 2)
	assert.Equal(t, Window{Start: day(2), End: day(4)}, chunks[1])
}

func TestChunkEmptyAndUnbounded(t *testing.T) {
	assert.Empty(t, Chunk(day(2), day(2), time.Hour))
	assert.Empty(t, Chunk(day(3), day(2), time.Hour))

	chunks := Chunk(d0, day(900), 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, Window{Start: d0, End: day(900)}, chunks[0])
}
