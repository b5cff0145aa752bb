package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dayahead/internal/tax"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入 %s 失败: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
database:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载默认配置失败: %v", err)
	}
	if cfg.Sync.IntervalDays != 2 {
		t.Fatalf("interval_days 默认值应为 2, 实际 %d", cfg.Sync.IntervalDays)
	}
	if cfg.Sync.MaxRequestSpan != 370*24*time.Hour {
		t.Fatalf("max_request_span 默认值应为 370 天, 实际 %s", cfg.Sync.MaxRequestSpan)
	}
	if !cfg.Sync.StartTime.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start_time 解析错误: %s", cfg.Sync.StartTime)
	}
	if cfg.Tax.DefaultRate != tax.DefaultRate {
		t.Fatalf("tax.default_rate 默认值应为 %v", tax.DefaultRate)
	}
	if len(cfg.Backends()) != 0 {
		t.Fatalf("未启用后端时 Backends 应为空, 实际 %v", cfg.Backends())
	}
}

func TestLoadReadsTaxSchedule(t *testing.T) {
	dir := t.TempDir()
	schedule := writeFile(t, dir, "tax.yaml", `
windows:
  - start_time: "2022-12-01T00:00:00"
    end_time: "2023-04-30T23:59:59"
    tax_percentage: 10
  - start_time: "2023-05-01T00:00:00"
    tax_percentage: 24
`)
	path := writeFile(t, dir, "config.yaml", `
database:
  enabled: true
  dsn: "postgres://localhost/dayahead"
clickhouse:
  enabled: true
sync:
  start_time: "2023-02-01T00:00:00Z"
tax:
  schedule_file: "`+schedule+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if len(cfg.Tax.Windows) != 2 {
		t.Fatalf("期望 2 个税率窗口, 实际 %d", len(cfg.Tax.Windows))
	}
	if got := cfg.Backends(); len(got) != 2 || got[0] != "timescale" || got[1] != "clickhouse" {
		t.Fatalf("Backends 不正确: %v", got)
	}
}

func TestLoadRejectsOverlappingTaxWindows(t *testing.T) {
	dir := t.TempDir()
	schedule := writeFile(t, dir, "tax.yaml", `
windows:
  - start_time: "2022-12-01T00:00:00"
    tax_percentage: 10
  - start_time: "2023-05-01T00:00:00"
    tax_percentage: 24
`)
	path := writeFile(t, dir, "config.yaml", `
database:
  enabled: false
tax:
  schedule_file: "`+schedule+`"
`)

	_, err := Load(path)
	if !errors.Is(err, tax.ErrOverlappingWindows) {
		t.Fatalf("重叠窗口应导致加载失败, 实际 %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DAYAHEAD_DATABASE_ENABLED", "false")
	t.Setenv("DAYAHEAD_ENTSOE_IN_DOMAIN", "10YSE-1--------K")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Entsoe.InDomain != "10YSE-1--------K" {
		t.Fatalf("环境变量应覆盖 in_domain, 实际 %s", cfg.Entsoe.InDomain)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Scheduler: SchedulerConfig{Interval: time.Hour},
			Sync: SyncConfig{
				StartTime:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				IntervalDays:   1,
				MaxRequestSpan: time.Hour,
			},
			Entsoe: EntsoeConfig{InDomain: "A", OutDomain: "B", RequestTimeout: time.Second},
			Export: ExportConfig{MaxDataPoints: 10},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval days", func(c *Config) { c.Sync.IntervalDays = 0 }},
		{"missing start", func(c *Config) { c.Sync.StartTime = time.Time{} }},
		{"missing domain", func(c *Config) { c.Entsoe.OutDomain = "" }},
		{"database without dsn", func(c *Config) { c.Database.Enabled = true }},
		{"clickhouse without addr", func(c *Config) { c.ClickHouse.Enabled = true }},
		{"telegram without token", func(c *Config) { c.Alerting.Telegram.Enabled = true }},
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("基础配置应通过校验: %v", err)
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: 应返回校验错误", tc.name)
		}
	}
}
