package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func TestRecordExposureIssued_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExposureIssued()
	c.RecordExposureIssued()

	mf := findMetric(t, reg, "meishi_exposures_issued_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("exposures_issued_total = %v, want 2", val)
	}
}

func TestRecordIssuanceRetryAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordIssuanceRetry()
	c.RecordIssuanceRetry()
	c.RecordIssuanceRetry()
	c.RecordIssuanceFailure()

	if val := findMetric(t, reg, "meishi_exposure_issuance_retries_total").GetMetric()[0].GetCounter().GetValue(); val != 3 {
		t.Errorf("retries = %v, want 3", val)
	}
	if val := findMetric(t, reg, "meishi_exposure_issuance_failures_total").GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("failures = %v, want 1", val)
	}
}

// TestRecordScan_LabelsByTypeAndDevice は経路と端末分類のラベルごとに集計されることを検証する。
func TestRecordScan_LabelsByTypeAndDevice(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScan("QR", "mobile")
	c.RecordScan("QR", "mobile")
	c.RecordScan("NFC", "tablet")

	mf := findMetric(t, reg, "meishi_scans_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		want := 1.0
		if labels["scan_type"] == "QR" {
			want = 2
		}
		if got := m.GetCounter().GetValue(); got != want {
			t.Errorf("scans_total%v = %v, want %v", labels, got, want)
		}
	}
}

func TestRecordScanDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScanDropped(DropReasonBot)

	mf := findMetric(t, reg, "meishi_scans_dropped_total")
	if got := mf.GetMetric()[0].GetLabel()[0].GetValue(); got != DropReasonBot {
		t.Errorf("reason label = %q, want %q", got, DropReasonBot)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, http.StatusNotFound, 15*time.Millisecond)

	mf := findMetric(t, reg, "meishi_http_requests_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("http_requests_total = %v, want 1", val)
	}
	hist := findMetric(t, reg, "meishi_http_request_duration_seconds")
	if n := hist.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("sample count = %d, want 1", n)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordExposureIssued()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "meishi_exposures_issued_total") {
		t.Error("response should contain meishi_exposures_issued_total metric")
	}
}

func TestNop_SatisfiesInterface(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordScan("QR", "desktop")
	c.RecordHTTPRequest(http.MethodPost, http.StatusCreated, time.Second)
}
