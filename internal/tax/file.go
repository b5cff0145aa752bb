package tax

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// naiveLayout matches timestamps written without a zone; they are read as UTC.
const naiveLayout = "2006-01-02T15:04:05"

type scheduleFile struct {
	Windows []windowEntry `yaml:"windows"`
}

type windowEntry struct {
	StartTime     string  `yaml:"start_time"`
	EndTime       string  `yaml:"end_time"`
	TaxPercentage float64 `yaml:"tax_percentage"`
}

// LoadFile reads a YAML tax schedule. It does not validate overlaps; callers
// pass the result to NewSchedule or Validate.
func LoadFile(path string) ([]Window, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tax schedule: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML tax schedule document.
func Parse(raw []byte) ([]Window, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode tax schedule: %w", err)
	}

	windows := make([]Window, 0, len(file.Windows))
	for i, entry := range file.Windows {
		start, err := parseTime(entry.StartTime)
		if err != nil {
			return nil, fmt.Errorf("tax window %d start_time: %w", i, err)
		}
		w := Window{Start: start, Rate: entry.TaxPercentage}
		if strings.TrimSpace(entry.EndTime) != "" {
			end, err := parseTime(entry.EndTime)
			if err != nil {
				return nil, fmt.Errorf("tax window %d end_time: %w", i, err)
			}
			if end.Before(start) {
				return nil, fmt.Errorf("tax window %d ends before it starts", i)
			}
			w.End = &end
		}
		if w.Rate < 0 {
			return nil, fmt.Errorf("tax window %d has negative tax_percentage", i)
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.ParseInLocation(naiveLayout, v, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
	}
	return t.UTC(), nil
}
