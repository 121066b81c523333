package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/meishi/internal/analytics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	Aggregate(ctx context.Context, ownerID string, window analytics.Window) (*analytics.Report, error)
}

// AnalyticsHandler はスキャン集計のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

type dayActivityResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type topCardResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Scans int    `json:"scans"`
}

type shareResponse struct {
	Method     string `json:"method"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// analyticsResponse は集計結果のAPIレスポンス。
type analyticsResponse struct {
	TimeRange    string                `json:"timeRange"`
	Since        time.Time             `json:"since"`
	TotalVCards  int                   `json:"totalVCards"`
	NewVCards    int                   `json:"newVCards"`
	TotalScans   int                   `json:"totalScans"`
	QRScans      int                   `json:"qrScans"`
	NFCScans     int                   `json:"nfcScans"`
	ScanActivity []dayActivityResponse `json:"scanActivity"`
	TopVCards    []topCardResponse     `json:"topVCards"`
	ScanMethods  []shareResponse       `json:"scanMethods"`
	DeviceTypes  []shareResponse       `json:"deviceTypes"`
}

func toAnalyticsResponse(r *analytics.Report) analyticsResponse {
	resp := analyticsResponse{
		TimeRange:    string(r.Window),
		Since:        r.Since,
		TotalVCards:  r.TotalCards,
		NewVCards:    r.NewCards,
		TotalScans:   r.TotalScans,
		QRScans:      r.QRScans,
		NFCScans:     r.NFCScans,
		ScanActivity: make([]dayActivityResponse, len(r.ScanActivity)),
		TopVCards:    make([]topCardResponse, len(r.TopCards)),
		ScanMethods:  toShareResponses(r.ScanMethods),
		DeviceTypes:  toShareResponses(r.DeviceTypes),
	}
	for i, d := range r.ScanActivity {
		resp.ScanActivity[i] = dayActivityResponse{Date: d.Date, Count: d.Scans}
	}
	for i, c := range r.TopCards {
		resp.TopVCards[i] = topCardResponse{ID: c.CardID, Name: c.Name, Scans: c.Scans}
	}
	return resp
}

func toShareResponses(shares []analytics.Share) []shareResponse {
	resp := make([]shareResponse, len(shares))
	for i, s := range shares {
		resp[i] = shareResponse{Method: s.Label, Count: s.Count, Percentage: s.Percentage}
	}
	return resp
}

// Get は期間内の集計結果を返す。
// GET /api/analytics?timeRange=7days
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	report, err := h.service.Aggregate(r.Context(), userID, analytics.ParseWindow(r.URL.Query().Get("timeRange")))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyticsResponse(report))
}

// Export は集計結果をXLSXファイルとして返す。
// GET /api/analytics/export?timeRange=30days
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	window := analytics.ParseWindow(r.URL.Query().Get("timeRange"))
	report, err := h.service.Aggregate(r.Context(), userID, window)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteXLSX(&buf, report); err != nil {
		handleServiceError(w, fmt.Errorf("failed to write analytics export: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="analytics-%s.xlsx"`, window))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
