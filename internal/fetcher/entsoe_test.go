package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dayahead/internal/model"
	"dayahead/internal/planner"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

const sampleDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">
  <mRID>doc-1</mRID>
  <revisionNumber>1</revisionNumber>
  <type>A44</type>
  <createdDateTime>2023-01-02T12:00:00Z</createdDateTime>
  <period.timeInterval>
    <start>2023-01-01T23:00Z</start>
    <end>2023-01-02T03:00Z</end>
  </period.timeInterval>
  <TimeSeries>
    <mRID>1</mRID>
    <businessType>A62</businessType>
    <in_Domain.mRID codingScheme="A01">10YFI-1--------U</in_Domain.mRID>
    <out_Domain.mRID codingScheme="A01">10YFI-1--------U</out_Domain.mRID>
    <currency_Unit.name>EUR</currency_Unit.name>
    <price_Measure_Unit.name>MWH</price_Measure_Unit.name>
    <curveType>A03</curveType>
    <Period>
      <timeInterval>
        <start>2023-01-01T23:00Z</start>
        <end>2023-01-02T03:00Z</end>
      </timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><price.amount>10.5</price.amount></Point>
      <Point><position>3</position><price.amount>12</price.amount></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

const sampleAcknowledgement = `<?xml version="1.0" encoding="UTF-8"?>
<Acknowledgement_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-1:acknowledgementdocument:7:0">
  <mRID>ack-1</mRID>
  <Reason>
    <code>999</code>
    <text>No matching data found</text>
  </Reason>
</Acknowledgement_MarketDocument>`

var (
	testPair   = model.DomainPair{In: "10YFI-1--------U", Out: "10YFI-1--------U"}
	testWindow = planner.Window{
		Start: time.Date(2023, 1, 1, 23, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 2, 23, 0, 0, 0, time.UTC),
	}
)

func newTestClient(url string) *Client {
	return NewClient(Options{
		BaseURL:       url,
		SecurityToken: "token",
		Timeout:       time.Second,
		UserAgent:     "test",
	}, noopLogger())
}

func TestFetchDocumentMissingToken(t *testing.T) {
	c := NewClient(Options{}, noopLogger())
	_, err := c.FetchDocument(context.Background(), testPair, testWindow)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("缺少 token 时应返回 TransportError, 实际 %v", err)
	}
}

func TestFetchDocumentQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("securityToken") != "token" {
			t.Errorf("securityToken 不正确: %q", q.Get("securityToken"))
		}
		if q.Get("documentType") != "A44" {
			t.Errorf("documentType 不正确: %q", q.Get("documentType"))
		}
		if q.Get("in_Domain") != testPair.In || q.Get("out_Domain") != testPair.Out {
			t.Errorf("domain 参数不正确: %v", q)
		}
		if q.Get("TimeInterval") != "2023-01-01T23:00Z/2023-01-02T23:00Z" {
			t.Errorf("TimeInterval 不正确: %q", q.Get("TimeInterval"))
		}
		if r.Header.Get("User-Agent") != "test" {
			t.Errorf("User-Agent 不正确: %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(sampleDocument))
	}))
	defer srv.Close()

	doc, err := newTestClient(srv.URL).FetchDocument(context.Background(), testPair, testWindow)
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(doc.TimeSeries) != 1 {
		t.Fatalf("期望 1 个 TimeSeries, 实际 %d", len(doc.TimeSeries))
	}
	ts := doc.TimeSeries[0]
	if ts.Currency != "EUR" || ts.PriceMeasureUnit != "MWH" || ts.CurveType != "A03" {
		t.Fatalf("元数据解析错误: %+v", ts)
	}
	if len(ts.Periods) != 1 || len(ts.Periods[0].Points) != 2 {
		t.Fatalf("Period 解析错误: %+v", ts.Periods)
	}
	if !ts.Periods[0].Points[0].Price.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("价格解析错误: %s", ts.Periods[0].Points[0].Price)
	}
}

func TestFetchDocumentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(sampleAcknowledgement))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchDocument(context.Background(), testPair, testWindow)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("HTTP 400 应返回 TransportError, 实际 %v", err)
	}
	if te.StatusCode != http.StatusBadRequest {
		t.Fatalf("状态码不正确: %d", te.StatusCode)
	}
	if te.Reason != "999: No matching data found" {
		t.Fatalf("应解析 Reason 文本, 实际 %q", te.Reason)
	}
}

func TestFetchDocumentAcknowledgementWithOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleAcknowledgement))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchDocument(context.Background(), testPair, testWindow)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Acknowledgement 文档应视为错误, 实际 %v", err)
	}
}

func TestParseDocumentMalformed(t *testing.T) {
	_, err := ParseDocument([]byte("<Publication_MarketDocument><mRID>"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("格式错误应返回 ParseError, 实际 %v", err)
	}

	_, err = ParseDocument([]byte("<Other/>"))
	if !errors.As(err, &pe) {
		t.Fatalf("未知根元素应返回 ParseError, 实际 %v", err)
	}
}

func TestPeriodSeries(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	p, err := doc.TimeSeries[0].Periods[0].Series()
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if p.Resolution != time.Hour {
		t.Fatalf("分辨率应为 1h, 实际 %s", p.Resolution)
	}
	if !p.Start.Equal(testWindow.Start) {
		t.Fatalf("起始时间不正确: %s", p.Start)
	}
	if p.Len() != 4 {
		t.Fatalf("期望 4 个位置, 实际 %d", p.Len())
	}
	if !p.Points[3].Equal(decimal.NewFromInt(12)) {
		t.Fatalf("位置 3 价格不正确: %s", p.Points[3])
	}

	created, err := doc.CreatedAt()
	if err != nil || !created.Equal(time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("createdDateTime 解析错误: %v %s", err, created)
	}
}

func TestPeriodSeriesInvalidResolution(t *testing.T) {
	p := Period{
		TimeInterval: TimeInterval{Start: "2023-01-01T23:00Z", End: "2023-01-02T23:00Z"},
		Resolution:   "P1Y",
	}
	if _, err := p.Series(); err == nil {
		t.Fatal("不支持的分辨率应返回错误")
	}
}
