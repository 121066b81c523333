package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/meishi/internal/analytics"
)

type mockAnalyticsService struct {
	aggregateFn func(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error)
}

func (m *mockAnalyticsService) Aggregate(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, ownerID, window)
	}
	return &analytics.Report{Window: window}, nil
}

func sampleReport(window analytics.Window) *analytics.Report {
	return &analytics.Report{
		Window:       window,
		Since:        time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		TotalCards:   2,
		NewCards:     1,
		TotalScans:   4,
		QRScans:      3,
		NFCScans:     1,
		ScanActivity: []analytics.DayActivity{{Date: "2026-10-18", Scans: 4}},
		TopCards:     []analytics.TopCard{{CardID: "card-1", Name: "Ada", Scans: 4}},
		ScanMethods: []analytics.Share{
			{Label: "QR", Count: 3, Percentage: 75},
			{Label: "NFC", Count: 1, Percentage: 25},
		},
		DeviceTypes: []analytics.Share{{Label: "mobile", Count: 4, Percentage: 100}},
	}
}

func TestAnalyticsHandler_Get_ParsesTimeRange(t *testing.T) {
	var gotWindow analytics.Window
	svc := &mockAnalyticsService{
		aggregateFn: func(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error) {
			assert.Equal(t, "user-1", ownerID)
			gotWindow = window
			return sampleReport(window), nil
		},
	}
	h := NewAnalyticsHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/analytics?timeRange=7days", nil), "user-1")
	w := httptest.NewRecorder()
	h.Get(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, analytics.Window7Days, gotWindow)

	resp := decodeBody[analyticsResponse](t, w)
	assert.Equal(t, "7days", resp.TimeRange)
	assert.Equal(t, 4, resp.TotalScans)
	assert.Equal(t, []dayActivityResponse{{Date: "2026-10-18", Count: 4}}, resp.ScanActivity)
	assert.Equal(t, []topCardResponse{{ID: "card-1", Name: "Ada", Scans: 4}}, resp.TopVCards)
	assert.Equal(t, "QR", resp.ScanMethods[0].Method)
	assert.Equal(t, 75, resp.ScanMethods[0].Percentage)
}

func TestAnalyticsHandler_Get_UnknownTimeRangeUsesDefault(t *testing.T) {
	var gotWindow analytics.Window
	svc := &mockAnalyticsService{
		aggregateFn: func(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error) {
			gotWindow = window
			return &analytics.Report{Window: window}, nil
		},
	}
	h := NewAnalyticsHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/analytics?timeRange=forever", nil), "user-1")
	w := httptest.NewRecorder()
	h.Get(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, analytics.DefaultWindow, gotWindow)

	// 空の集計でも配列はnullではなく空配列で返す
	assert.Contains(t, w.Body.String(), `"scanActivity":[]`)
	assert.Contains(t, w.Body.String(), `"topVCards":[]`)
}

func TestAnalyticsHandler_Get_ServiceError(t *testing.T) {
	svc := &mockAnalyticsService{
		aggregateFn: func(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewAnalyticsHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/analytics", nil), "user-1")
	w := httptest.NewRecorder()
	h.Get(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAnalyticsHandler_Export_ReturnsWorkbook(t *testing.T) {
	svc := &mockAnalyticsService{
		aggregateFn: func(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error) {
			return sampleReport(window), nil
		},
	}
	h := NewAnalyticsHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/analytics/export?timeRange=90d", nil), "user-1")
	w := httptest.NewRecorder()
	h.Export(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="analytics-90days.xlsx"`, w.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Summary")
}
