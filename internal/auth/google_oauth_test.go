package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGoogleStub はトークンエンドポイントとユーザー情報エンドポイントを持つテスト用サーバーを返す。
func newGoogleStub(t *testing.T, userInfo map[string]any, userInfoStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "test-client-secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userInfoStatus)
		_ = json.NewEncoder(w).Encode(userInfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GoogleOAuthProvider {
	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	})
}

func TestGoogleOAuthProvider_GetLoginURL(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	u, err := url.Parse(provider.GetLoginURL("state-123"))
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "test-client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "email")
	assert.Contains(t, q.Get("scope"), "profile")
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	srv := newGoogleStub(t, map[string]any{
		"sub":     "google-sub-12345",
		"email":   "Ada@Example.com",
		"name":    "Ada Lovelace",
		"picture": "https://lh3.googleusercontent.com/a/ada",
	}, http.StatusOK)

	info, err := newTestProvider(srv).ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "google", info.Provider)
	assert.Equal(t, "google-sub-12345", info.ProviderUserID)
	assert.Equal(t, "ada@example.com", info.Email)
	assert.Equal(t, "Ada Lovelace", info.Name)
	assert.Equal(t, "https://lh3.googleusercontent.com/a/ada", info.Image)
}

func TestGoogleOAuthProvider_ExchangeCode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		userInfo map[string]any
		status   int
	}{
		{"無効な認可コード", "bad-code", map[string]any{"sub": "1", "email": "a@b.c"}, http.StatusOK},
		{"ユーザー情報の取得失敗", "good-code", map[string]any{}, http.StatusInternalServerError},
		{"subが空", "good-code", map[string]any{"email": "a@b.c"}, http.StatusOK},
		{"emailが空", "good-code", map[string]any{"sub": "1"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newGoogleStub(t, tt.userInfo, tt.status)
			_, err := newTestProvider(srv).ExchangeCode(context.Background(), tt.code)
			assert.Error(t, err)
		})
	}
}

func TestGoogleOAuthConfig_Enabled(t *testing.T) {
	assert.False(t, GoogleOAuthConfig{}.Enabled())
	assert.False(t, GoogleOAuthConfig{ClientID: "id", ClientSecret: "secret"}.Enabled())
	assert.True(t, GoogleOAuthConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://x/cb"}.Enabled())
}
