package handler

import (
	"bytes"
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode"

	"github.com/emersion/go-vcard"
	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/meishi/internal/middleware"
	"github.com/hitoshi/meishi/internal/model"
)

// ScanServiceInterface はスキャン記録のインターフェース。
type ScanServiceInterface interface {
	// Record は明示的なスキャン記録を行う。不正な入力と未知のカードのみエラーを返す。
	Record(ctx context.Context, cardID, scanType, deviceType, clientKey string) error
	// RecordView は公開カード表示に伴うスキャンを記録する。失敗は呼び出し元に返さない。
	RecordView(ctx context.Context, cardID string, via model.ScanType, userAgent, clientKey string) bool
}

// PublicHandler は認証不要の公開カードのHTTPハンドラー。
type PublicHandler struct {
	exposures ExposureServiceInterface
	scans     ScanServiceInterface
}

// NewPublicHandler はPublicHandlerを生成する。
func NewPublicHandler(exposures ExposureServiceInterface, scans ScanServiceInterface) *PublicHandler {
	return &PublicHandler{exposures: exposures, scans: scans}
}

// scanLogRequest は明示的なスキャン記録リクエストのボディ。
type scanLogRequest struct {
	CardID     string `json:"cardId"`
	ScanType   string `json:"scanType"`
	DeviceType string `json:"deviceType"`
}

// publicCardResponse は公開カードのレスポンス。所有者のユーザーIDは含めない。
func (h *PublicHandler) publicCardResponse(d *model.CardDetail) cardResponse {
	resp := toCardResponse(&d.Card)
	resp.UserID = ""
	resp.SocialLinks = make([]socialLinkResponse, len(d.SocialLinks))
	for i, l := range d.SocialLinks {
		resp.SocialLinks[i] = socialLinkResponse{ID: l.ID, Platform: l.Platform, URL: l.URL}
	}
	resp.PublicID = d.PublicID
	resp.PublicURL = h.exposures.PublicURL(d.PublicID)
	return resp
}

// View は公開IDからカードを返し、スキャンを1件記録する。
// ?via=nfc の場合はNFC、それ以外はQRとして記録する。
// GET /api/public/{publicId}
func (h *PublicHandler) View(w http.ResponseWriter, r *http.Request) {
	detail, err := h.exposures.Resolve(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	via := model.ScanTypeQR
	if st, ok := model.ParseScanType(r.URL.Query().Get("via")); ok {
		via = st
	}
	h.scans.RecordView(r.Context(), detail.ID, via, r.UserAgent(), middleware.ClientIP(r))

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.publicCardResponse(detail))
}

// VCard は公開カードをvCard 4.0形式でダウンロードさせる。スキャンは記録しない。
// GET /api/public/{publicId}/vcard
func (h *PublicHandler) VCard(w http.ResponseWriter, r *http.Request) {
	detail, err := h.exposures.Resolve(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(buildVCard(detail, h.exposures.PublicURL(detail.PublicID))); err != nil {
		slog.Error("failed to encode vcard",
			slog.String("card_id", detail.ID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": vcardFilename(detail.Name),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ScanLog は公開ビューアからの明示的なスキャン記録を受け付ける。
// POST /api/scan-log
func (h *PublicHandler) ScanLog(w http.ResponseWriter, r *http.Request) {
	var req scanLogRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.scans.Record(r.Context(), req.CardID, req.ScanType, req.DeviceType, middleware.ClientIP(r)); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// buildVCard はカードからvCardを組み立てる。
func buildVCard(d *model.CardDetail, publicURL string) vcard.Card {
	c := make(vcard.Card)
	c.SetValue(vcard.FieldFormattedName, d.Name)
	c.SetName(&vcard.Name{GivenName: d.Name})
	c.Add(vcard.FieldEmail, &vcard.Field{
		Value:  d.Email,
		Params: vcard.Params{vcard.ParamType: {vcard.TypeWork}},
	})
	c.Add(vcard.FieldTelephone, &vcard.Field{
		Value:  d.Phone,
		Params: vcard.Params{vcard.ParamType: {vcard.TypeCell}},
	})
	if d.Company != nil {
		c.SetValue(vcard.FieldOrganization, *d.Company)
	}
	if d.Position != nil {
		c.SetValue(vcard.FieldTitle, *d.Position)
	}
	if d.Website != nil {
		c.AddValue(vcard.FieldURL, *d.Website)
	}
	for _, l := range d.SocialLinks {
		c.Add(vcard.FieldURL, &vcard.Field{
			Value:  l.URL,
			Params: vcard.Params{vcard.ParamType: {l.Platform}},
		})
	}
	if publicURL != "" {
		c.Add(vcard.FieldURL, &vcard.Field{
			Value:  publicURL,
			Params: vcard.Params{vcard.ParamType: {"profile"}},
		})
	}
	if d.Address != nil {
		c.AddAddress(&vcard.Address{StreetAddress: *d.Address})
	}
	if d.Bio != nil {
		c.SetValue(vcard.FieldNote, *d.Bio)
	}
	if d.ProfileImageURL != nil {
		c.SetValue(vcard.FieldPhoto, *d.ProfileImageURL)
	}
	vcard.ToV4(c)
	return c
}

// vcardFilename はカード名からダウンロード用のファイル名を作る。
func vcardFilename(name string) string {
	base := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		if unicode.IsSpace(r) {
			return '_'
		}
		return -1
	}, strings.TrimSpace(name))
	if base == "" {
		base = "contact"
	}
	return base + ".vcf"
}
