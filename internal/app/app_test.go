package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dayahead/internal/config"
	"dayahead/internal/model"
	"dayahead/internal/planner"
	"dayahead/internal/service"
	"dayahead/internal/storage"
	"dayahead/internal/tax"
)

const inspectDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument>
  <mRID>doc</mRID>
  <type>A44</type>
  <createdDateTime>2023-01-02T12:00:00Z</createdDateTime>
  <TimeSeries>
    <in_Domain.mRID>10YSE-1--------K</in_Domain.mRID>
    <out_Domain.mRID>10YSE-1--------K</out_Domain.mRID>
    <currency_Unit.name>EUR</currency_Unit.name>
    <price_Measure_Unit.name>MWH</price_Measure_Unit.name>
    <curveType>A03</curveType>
    <Period>
      <timeInterval>
        <start>2023-01-01T23:00Z</start>
        <end>2023-01-02T02:00Z</end>
      </timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><price.amount>100</price.amount></Point>
      <Point><position>3</position><price.amount>50</price.amount></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

func testApp() *App {
	cfg := &config.Config{
		Entsoe: config.EntsoeConfig{InDomain: "10YFI-1--------U", OutDomain: "10YFI-1--------U"},
		Sync:   config.SyncConfig{StartTime: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), IntervalDays: 1},
		Tax:    config.TaxConfig{DefaultRate: tax.DefaultRate},
		Export: config.ExportConfig{MaxDataPoints: 10},
	}
	return NewApp(cfg, zerolog.Nop())
}

func TestExpandDocumentUsesDocumentDomains(t *testing.T) {
	records, err := testApp().expandDocument([]byte(inspectDocument))
	if err != nil {
		t.Fatalf("解析文档失败: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("期望 3 条记录, 实际 %d", len(records))
	}
	if records[0].Domains.In != "10YSE-1--------K" {
		t.Fatalf("应使用文档中的 domain: %s", records[0].Domains)
	}
	if !records[1].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("缺失位置应沿用上一价格, 实际 %s", records[1].Price)
	}
	if records[2].TaxPercentage != tax.DefaultRate {
		t.Fatalf("无税率窗口时应使用默认税率, 实际 %v", records[2].TaxPercentage)
	}
}

func TestInspectPrintsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.xml")
	if err := os.WriteFile(path, []byte(inspectDocument), 0o600); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	if err := testApp().Inspect(InspectOptions{Path: path}); err != nil {
		t.Fatalf("inspect 失败: %v", err)
	}

	if err := testApp().Inspect(InspectOptions{Path: filepath.Join(t.TempDir(), "missing.xml")}); err == nil {
		t.Fatal("文件不存在时应报错")
	}
}

func TestPrintRecordsLimit(t *testing.T) {
	records, err := testApp().expandDocument([]byte(inspectDocument))
	if err != nil {
		t.Fatalf("解析文档失败: %v", err)
	}

	var buf bytes.Buffer
	printRecords(&buf, records, 2)
	out := buf.String()
	if !strings.Contains(out, "2023-01-01T23:00:00Z") {
		t.Fatalf("输出应包含首个时间点: %s", out)
	}
	if !strings.Contains(out, "124.00") {
		t.Fatalf("输出应包含含税价格: %s", out)
	}
	if !strings.Contains(out, "... 1 more") {
		t.Fatalf("超过 limit 时应提示剩余条数: %s", out)
	}
}

func TestPrintResult(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	result := service.Result{Chunks: []service.ChunkResult{
		{
			Window:  planner.Window{Start: start, End: start.Add(24 * time.Hour)},
			Records: 24,
			Backends: []service.BackendOutcome{
				{Backend: "timescale", Summary: storage.Summary{Written: 24}},
				{Backend: "clickhouse", Err: errors.New("connection\nrefused")},
			},
		},
		{
			Window: planner.Window{Start: start.Add(24 * time.Hour), End: start.Add(48 * time.Hour)},
			Err:    errors.New("entsoe api error (503)"),
		},
	}}

	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()
	for _, want := range []string{"timescale", "connection refused", "entsoe api error (503)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出应包含 %q: %s", want, out)
		}
	}
}

func TestDownsamplePrices(t *testing.T) {
	prices := make([]storage.StoredPrice, 100)
	for i := range prices {
		prices[i] = storage.StoredPrice{Time: time.Unix(int64(i)*3600, 0), Price: decimal.NewFromInt(int64(i))}
	}

	out := downsamplePrices(prices, 10)
	if len(out) != 10 {
		t.Fatalf("期望 10 个点, 实际 %d", len(out))
	}
	if !out[0].Time.Equal(prices[0].Time) || !out[9].Time.Equal(prices[99].Time) {
		t.Fatal("降采样应保留首尾")
	}
	if got := downsamplePrices(prices[:5], 10); len(got) != 5 {
		t.Fatalf("点数不足时应原样返回, 实际 %d", len(got))
	}
}

func TestWritePricesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "prices.csv")
	prices := []storage.StoredPrice{{
		Time:             time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Domains:          model.DomainPair{In: "A", Out: "B"},
		Currency:         "EUR",
		PriceMeasureUnit: "MWH",
		Price:            decimal.NewFromInt(100),
		TaxPercentage:    10,
	}}
	if err := writePricesCSV(path, prices); err != nil {
		t.Fatalf("写入 CSV 失败: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 CSV 失败: %v", err)
	}
	if !strings.Contains(string(raw), "2023-01-01T00:00:00Z,A,B,EUR,MWH,100,10,110.0000") {
		t.Fatalf("CSV 内容不正确: %s", raw)
	}
}

func TestRunWithNothingEnabled(t *testing.T) {
	if err := testApp().Run(t.Context()); err != nil {
		t.Fatalf("未启用任何组件时应直接返回: %v", err)
	}
}
