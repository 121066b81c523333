package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/upload"
)

// UploadServiceInterface は画像アップロードURL発行のインターフェース。
type UploadServiceInterface interface {
	PresignImageUpload(ctx context.Context, userID, filename, contentType string) (*upload.Result, error)
}

// UploadHandler は画像アップロードのHTTPハンドラー。
// serviceがnilの場合（オブジェクトストレージ未設定）は503を返す。
type UploadHandler struct {
	service UploadServiceInterface
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service UploadServiceInterface) *UploadHandler {
	return &UploadHandler{service: service}
}

type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type uploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
	ExpiresIn int    `json:"expiresIn"` // 秒
}

// Presign はプロフィール画像アップロード用の署名付きURLを発行する。
// POST /api/upload
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		handleServiceError(w, model.NewUploadDisabledError())
		return
	}

	var req uploadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.PresignImageUpload(r.Context(), userID, req.Filename, req.ContentType)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		UploadURL: result.UploadURL,
		FileURL:   result.FileURL,
		ExpiresIn: int(result.ExpiresIn.Seconds()),
	})
}
