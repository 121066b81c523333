package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/hitoshi/meishi/internal/card"
	"github.com/hitoshi/meishi/internal/model"
)

// QRコード画像のサイズ（ピクセル）
const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// CardServiceInterface はカードハンドラーが必要とするサービスインターフェース。
type CardServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Card, error)
	Create(ctx context.Context, userID string, in card.Input) (*model.CardDetail, error)
	// Get は公開IDを発行しない。未公開の場合PublicIDは空文字列。
	Get(ctx context.Context, userID, cardID string) (*model.CardDetail, error)
	Update(ctx context.Context, userID, cardID string, in card.Input) (*model.CardDetail, error)
	Delete(ctx context.Context, userID, cardID string) error
}

// ExposureServiceInterface は公開IDの発行・解決のインターフェース。
type ExposureServiceInterface interface {
	// Ensure はカードを公開状態にし、公開IDと公開URLを返す。
	Ensure(ctx context.Context, cardID, ownerID string) (*exposureResponse, error)
	// Resolve は公開IDからカードを取得する。
	Resolve(ctx context.Context, publicID string) (*model.CardDetail, error)
	// PublicURL は公開IDから公開ページのURLを組み立てる。
	PublicURL(publicID string) string
}

// CardHandler はカード管理のHTTPハンドラー。
type CardHandler struct {
	cards     CardServiceInterface
	exposures ExposureServiceInterface
}

// NewCardHandler はCardHandlerを生成する。
func NewCardHandler(cards CardServiceInterface, exposures ExposureServiceInterface) *CardHandler {
	return &CardHandler{cards: cards, exposures: exposures}
}

// cardRequest はカードの作成・更新リクエストのボディ。
// socialLinksはプラットフォーム名をキーとするオブジェクト。省略時は更新で既存のリンクを維持する。
type cardRequest struct {
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	Website         string            `json:"website"`
	Company         string            `json:"company"`
	Position        string            `json:"position"`
	Address         string            `json:"address"`
	Bio             string            `json:"bio"`
	Template        string            `json:"template"`
	PrimaryColor    string            `json:"primaryColor"`
	ProfileImageURL string            `json:"profileImageUrl"`
	EnableNFC       bool              `json:"enableNFC"`
	SocialLinks     map[string]string `json:"socialLinks"`
}

func (req cardRequest) toInput() card.Input {
	return card.Input{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Website:         req.Website,
		Company:         req.Company,
		Position:        req.Position,
		Address:         req.Address,
		Bio:             req.Bio,
		Template:        req.Template,
		PrimaryColor:    req.PrimaryColor,
		ProfileImageURL: req.ProfileImageURL,
		EnableNFC:       req.EnableNFC,
		SocialLinks:     socialLinkInputs(req.SocialLinks),
	}
}

// socialLinkInputs はリンクのオブジェクトを入力値に変換する。
// 既知のプラットフォームを定義順に並べ、未知のキーはその後に名前順で並べる（サービス層で拒否される）。
func socialLinkInputs(links map[string]string) []card.SocialLinkInput {
	if links == nil {
		return nil
	}
	result := make([]card.SocialLinkInput, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, p := range model.SocialPlatforms {
		if u, ok := links[p]; ok {
			result = append(result, card.SocialLinkInput{Platform: p, URL: u})
			seen[p] = true
		}
	}
	var unknown []string
	for p := range links {
		if !seen[p] {
			unknown = append(unknown, p)
		}
	}
	sort.Strings(unknown)
	for _, p := range unknown {
		result = append(result, card.SocialLinkInput{Platform: p, URL: links[p]})
	}
	return result
}

// socialLinkResponse はSNSリンクのAPIレスポンス。
type socialLinkResponse struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// cardResponse はカードのAPIレスポンス。
type cardResponse struct {
	ID              string               `json:"id"`
	UserID          string               `json:"userId,omitempty"`
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Phone           string               `json:"phone"`
	Website         *string              `json:"website"`
	Company         *string              `json:"company"`
	Position        *string              `json:"position"`
	Address         *string              `json:"address"`
	Bio             *string              `json:"bio"`
	Template        string               `json:"template"`
	PrimaryColor    string               `json:"primaryColor"`
	ProfileImageURL *string              `json:"profileImageUrl"`
	EnableNFC       bool                 `json:"enableNFC"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	SocialLinks     []socialLinkResponse `json:"socialLinks,omitempty"`
	PublicID        string               `json:"publicId,omitempty"`
	PublicURL       string               `json:"publicUrl,omitempty"`
}

// exposureResponse は公開ID発行のAPIレスポンス。
type exposureResponse struct {
	PublicID  string `json:"publicId"`
	PublicURL string `json:"publicUrl"`
}

func toCardResponse(c *model.Card) cardResponse {
	return cardResponse{
		ID:              c.ID,
		UserID:          c.UserID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		Website:         c.Website,
		Company:         c.Company,
		Position:        c.Position,
		Address:         c.Address,
		Bio:             c.Bio,
		Template:        c.Template,
		PrimaryColor:    c.PrimaryColor,
		ProfileImageURL: c.ProfileImageURL,
		EnableNFC:       c.EnableNFC,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (h *CardHandler) toDetailResponse(d *model.CardDetail) cardResponse {
	resp := toCardResponse(&d.Card)
	resp.SocialLinks = make([]socialLinkResponse, len(d.SocialLinks))
	for i, l := range d.SocialLinks {
		resp.SocialLinks[i] = socialLinkResponse{ID: l.ID, Platform: l.Platform, URL: l.URL}
	}
	if d.PublicID != "" {
		resp.PublicID = d.PublicID
		resp.PublicURL = h.exposures.PublicURL(d.PublicID)
	}
	return resp
}

// List はユーザーのカード一覧を返す。
// GET /api/cards
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	cards, err := h.cards.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]cardResponse, len(cards))
	for i, c := range cards {
		resp[i] = toCardResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はカードを作成する。公開IDの発行に失敗してもカードは作成される。
// POST /api/cards
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req cardRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	detail, err := h.cards.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toDetailResponse(detail))
}

// Get はカード詳細を返す。公開IDの発行は行わない。
// GET /api/cards/{id}
func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.cards.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toDetailResponse(detail))
}

// Update はカードを更新する。
// PUT /api/cards/{id}
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req cardRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	detail, err := h.cards.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toDetailResponse(detail))
}

// Delete はカードを削除する。SNSリンク、公開ID、スキャン記録も削除される。
// DELETE /api/cards/{id}
func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.cards.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Expose はカードを公開状態にし、公開IDとURLを返す。既に公開済みの場合は同じIDを返す。
// POST /api/cards/{id}/exposure
func (h *CardHandler) Expose(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.exposures.Ensure(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// QRCode は公開URLのQRコードをPNGで返す。共有用のため未公開のカードは公開状態にする。
// GET /api/cards/{id}/qr?size=256
func (h *CardHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidInputError("sizeは128から1024の整数で指定してください"))
			return
		}
		size = n
	}

	exp, err := h.exposures.Ensure(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	png, err := qrcode.Encode(exp.PublicURL, qrcode.Medium, size)
	if err != nil {
		slog.Error("failed to encode QR code",
			slog.String("public_id", exp.PublicID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
