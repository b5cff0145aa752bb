package series

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidResolution reports a resolution that is not a positive fixed duration.
var ErrInvalidResolution = errors.New("series: invalid resolution")

// Years and months are rejected: they do not map to a fixed step.
var isoDuration = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseResolution converts an ISO-8601 duration such as PT60M, PT15M or P1D.
func ParseResolution(v string) (time.Duration, error) {
	m := isoDuration.FindStringSubmatch(v)
	if m == nil || v == "P" || v == "PT" || v[len(v)-1] == 'T' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, v)
	}

	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, v)
		}
		total += time.Duration(n) * unit
	}

	if total <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, v)
	}
	return total, nil
}
