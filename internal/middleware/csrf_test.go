package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/meishi/internal/model"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			handlerCalled := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(method, "/api/cards", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.True(t, handlerCalled)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCSRFMiddleware_GET_SetsCookieOnlyWhenMissing(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{CookieSecure: true, CookieDomain: "example.com"})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cards", nil))

	cookie := findCookie(w.Result(), csrfCookieName)
	require.NotNil(t, cookie)
	assert.Len(t, cookie.Value, 64)
	assert.False(t, cookie.HttpOnly, "frontend must be able to read the token")
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Nil(t, findCookie(w.Result(), csrfCookieName))
}

func TestCSRFMiddleware_StateChangingMethods(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		cookieToken string
		headerToken string
		wantStatus  int
	}{
		{"POST 有効なトークン", http.MethodPost, "tok", "tok", http.StatusOK},
		{"PUT 有効なトークン", http.MethodPut, "tok", "tok", http.StatusOK},
		{"DELETE 有効なトークン", http.MethodDelete, "tok", "tok", http.StatusOK},
		{"POST Cookieなし", http.MethodPost, "", "tok", http.StatusForbidden},
		{"POST ヘッダーなし", http.MethodPost, "tok", "", http.StatusForbidden},
		{"POST 不一致", http.MethodPost, "tok", "other", http.StatusForbidden},
		{"PATCH トークンなし", http.MethodPatch, "", "", http.StatusForbidden},
		{"DELETE トークンなし", http.MethodDelete, "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/cards", nil)
			if tt.cookieToken != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookieToken})
			}
			if tt.headerToken != "" {
				req.Header.Set(csrfHeaderName, tt.headerToken)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, handlerCalled)
			if tt.wantStatus == http.StatusForbidden {
				var body ErrorResponseBody
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, model.ErrCodeCSRFInvalid, body.Code)
			}
		})
	}
}

func TestCSRFMiddleware_BearerRequest_SkipsValidation(t *testing.T) {
	handlerCalled := false
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cards", nil)
	req = req.WithContext(withIdentity(context.Background(), "user-1", AuthMethodBearer))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCSRFMiddleware_CookieSessionRequest_StillValidated(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be called without a token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cards", nil)
	req = req.WithContext(withIdentity(context.Background(), "user-1", AuthMethodCookie))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- CSRFトークン取得エンドポイントのテスト ---

func TestCSRFTokenHandler_SetsTokenCookieAndReturnsJSON(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{CookieDomain: "example.com"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)

	cookie := findCookie(resp, csrfCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, body.Token, cookie.Value)
	assert.Equal(t, csrfCookieMaxAge, cookie.MaxAge)
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-csrf-token"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "existing-csrf-token", body.Token)
	assert.Nil(t, findCookie(w.Result(), csrfCookieName))
}
