package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/upload"
)

type mockUploadService struct {
	presignFn func(ctx context.Context, userID, filename, contentType string) (*upload.Result, error)
}

func (m *mockUploadService) PresignImageUpload(ctx context.Context, userID, filename, contentType string) (*upload.Result, error) {
	return m.presignFn(ctx, userID, filename, contentType)
}

func TestUploadHandler_Presign_ReturnsURLs(t *testing.T) {
	svc := &mockUploadService{
		presignFn: func(ctx context.Context, userID, filename, contentType string) (*upload.Result, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "image/png", contentType)
			return &upload.Result{
				UploadURL: "https://bucket.s3.amazonaws.com/profiles/user-1/abc.png?X-Amz-Signature=sig",
				FileURL:   "https://cdn.example.com/profiles/user-1/abc.png",
				Key:       "profiles/user-1/abc.png",
				ExpiresIn: time.Hour,
			}, nil
		},
	}
	h := NewUploadHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"filename":"me.png","contentType":"image/png"}`)), "user-1")
	w := httptest.NewRecorder()
	h.Presign(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[uploadResponse](t, w)
	assert.Equal(t, "https://cdn.example.com/profiles/user-1/abc.png", resp.FileURL)
	assert.Equal(t, 3600, resp.ExpiresIn)
}

func TestUploadHandler_Presign_Disabled(t *testing.T) {
	h := NewUploadHandler(nil)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{}`)), "user-1")
	w := httptest.NewRecorder()
	h.Presign(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, model.ErrCodeUploadDisabled, parseAPIErrorResponse(t, w).Code)
}

func TestUploadHandler_Presign_RejectedType(t *testing.T) {
	svc := &mockUploadService{
		presignFn: func(ctx context.Context, userID, filename, contentType string) (*upload.Result, error) {
			return nil, model.NewInvalidInputError("対応していないファイル形式です")
		},
	}
	h := NewUploadHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"filename":"x.exe","contentType":"application/octet-stream"}`)), "user-1")
	w := httptest.NewRecorder()
	h.Presign(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
