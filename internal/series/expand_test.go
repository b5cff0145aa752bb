package series

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2022, 6, 29, 22, 0, 0, 0, time.UTC)

func collect(t *testing.T, p Period) []Sample {
	t.Helper()
	seq, err := Expand(p)
	require.NoError(t, err)
	var out []Sample
	for s := range seq {
		out = append(out, s)
	}
	return out
}

func TestExpandForwardFillsGaps(t *testing.T) {
	p := Period{
		Start:      t0,
		End:        t0.Add(3 * time.Hour),
		Resolution: time.Hour,
		Points: map[int]decimal.Decimal{
			1: decimal.RequireFromString("10.0"),
			3: decimal.RequireFromString("12.0"),
		},
	}

	samples := collect(t, p)
	require.Len(t, samples, 3)

	want := []struct {
		at    time.Time
		price string
	}{
		{t0, "10"},
		{t0.Add(time.Hour), "10"},
		{t0.Add(2 * time.Hour), "12"},
	}
	for i, w := range want {
		assert.Equal(t, w.at, samples[i].Time)
		assert.True(t, samples[i].Price.Equal(decimal.RequireFromString(w.price)), "sample %d price %s", i, samples[i].Price)
		assert.Equal(t, i+1, samples[i].Position)
	}
	assert.True(t, samples[1].Filled)
	assert.False(t, samples[2].Filled)
}

func TestExpandMissingFirstPositionIsZero(t *testing.T) {
	p := Period{
		Start:      t0,
		End:        t0.Add(2 * time.Hour),
		Resolution: time.Hour,
		Points:     map[int]decimal.Decimal{2: decimal.RequireFromString("5.0")},
	}

	samples := collect(t, p)
	require.Len(t, samples, 2)
	assert.Equal(t, t0, samples[0].Time)
	assert.True(t, samples[0].Price.IsZero())
	assert.Equal(t, t0.Add(time.Hour), samples[1].Time)
	assert.True(t, samples[1].Price.Equal(decimal.NewFromInt(5)))
}

func TestExpandTrailingGapRepeatsLastPrice(t *testing.T) {
	p := Period{
		Start:      t0,
		End:        t0.Add(time.Hour),
		Resolution: 15 * time.Minute,
		Points:     map[int]decimal.Decimal{1: decimal.NewFromInt(7), 2: decimal.NewFromInt(8)},
	}

	samples := collect(t, p)
	require.Len(t, samples, 4)
	assert.True(t, samples[3].Price.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, t0.Add(45*time.Minute), samples[3].Time)
	assert.Equal(t, 4, p.Len())
}

func TestExpandIgnoresPointsBeyondEnd(t *testing.T) {
	p := Period{
		Start:      t0,
		End:        t0.Add(time.Hour),
		Resolution: time.Hour,
		Points:     map[int]decimal.Decimal{1: decimal.NewFromInt(1), 2: decimal.NewFromInt(2)},
	}

	samples := collect(t, p)
	require.Len(t, samples, 1)
}

func TestExpandIsRestartable(t *testing.T) {
	p := Period{
		Start:      t0,
		End:        t0.Add(4 * time.Hour),
		Resolution: time.Hour,
		Points:     map[int]decimal.Decimal{2: decimal.NewFromInt(3)},
	}
	seq, err := Expand(p)
	require.NoError(t, err)

	var first, second []Sample
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	assert.Equal(t, first, second)
}

func TestExpandStopsEarly(t *testing.T) {
	seq, err := Expand(Period{Start: t0, End: t0.Add(24 * time.Hour), Resolution: time.Hour})
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		if n == 5 {
			break
		}
	}
	assert.Equal(t, 5, n)
}

func TestExpandRejectsInvalidResolution(t *testing.T) {
	_, err := Expand(Period{Start: t0, End: t0.Add(time.Hour)})
	require.ErrorIs(t, err, ErrInvalidResolution)

	_, err = Expand(Period{Start: t0, End: t0.Add(time.Hour), Resolution: -time.Minute})
	require.ErrorIs(t, err, ErrInvalidResolution)
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "PT60M", want: time.Hour},
		{in: "PT15M", want: 15 * time.Minute},
		{in: "PT30M", want: 30 * time.Minute},
		{in: "PT1H", want: time.Hour},
		{in: "P1D", want: 24 * time.Hour},
		{in: "P7D", want: 7 * 24 * time.Hour},
		{in: "P1W", want: 7 * 24 * time.Hour},
		{in: "P1DT12H", want: 36 * time.Hour},
		{in: "PT90S", want: 90 * time.Second},
		{in: "PT0M", wantErr: true},
		{in: "P1Y", wantErr: true},
		{in: "P1M", wantErr: true},
		{in: "PT", wantErr: true},
		{in: "P", wantErr: true},
		{in: "P1DT", wantErr: true},
		{in: "60", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResolution(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidResolution)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
