package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/meishi/internal/auth"
	"github.com/hitoshi/meishi/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	oauthEnabled     bool
	getLoginURLFn    func(state string) (string, error)
	handleCallbackFn func(ctx context.Context, code string) (*auth.LoginResult, error)
	registerFn       func(ctx context.Context, email, password, name string) (*auth.LoginResult, error)
	loginFn          func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) OAuthEnabled() bool { return m.oauthEnabled }

func (m *mockAuthService) GetLoginURL(state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "", auth.ErrOAuthDisabled
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.LoginResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, auth.ErrOAuthDisabled
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (*auth.LoginResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password, name)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

var testAuthConfig = AuthHandlerConfig{
	BaseURL:       "http://localhost:3000",
	SessionMaxAge: 86400,
}

func loginResult(sessionID string) *auth.LoginResult {
	return &auth.LoginResult{
		Session:        &model.Session{ID: sessionID, UserID: "user-1", ExpiresAt: time.Now().Add(24 * time.Hour)},
		User:           &model.User{ID: "user-1", Email: "ada@example.com", Name: "Ada"},
		Token:          "header.payload.signature",
		TokenExpiresAt: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
	}
}

func findResponseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_Register_SetsCookieAndReturnsToken(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password, name string) (*auth.LoginResult, error) {
			assert.Equal(t, "ada@example.com", email)
			assert.Equal(t, "correct horse", password)
			return loginResult("session-abc"), nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	body := `{"email":"ada@example.com","password":"correct horse","name":"Ada"}`
	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

	resp := w.Result()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cookie := findResponseCookie(resp, "session_id")
	require.NotNil(t, cookie)
	assert.Equal(t, "session-abc", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	got := decodeBody[loginResponse](t, w)
	assert.Equal(t, "ada@example.com", got.User.Email)
	assert.Equal(t, "header.payload.signature", got.Token)
	require.NotNil(t, got.TokenExpiresAt)
}

func TestAuthHandler_Register_EmailTaken_ReturnsConflict(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password, name string) (*auth.LoginResult, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"ada@example.com","password":"x"}`)))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Nil(t, findResponseCookie(w.Result(), "session_id"))
}

func TestAuthHandler_PasswordLogin_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.PasswordLogin(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, model.ErrCodeInvalidCredentials, parseAPIErrorResponse(t, w).Code)
}

func TestAuthHandler_Login_RedirectsWithState(t *testing.T) {
	var gotState string
	svc := &mockAuthService{
		oauthEnabled: true,
		getLoginURLFn: func(state string) (string, error) {
			gotState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	resp := w.Result()
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "accounts.google.com")

	stateCookie := findResponseCookie(resp, "oauth_state")
	require.NotNil(t, stateCookie)
	assert.Equal(t, gotState, stateCookie.Value)
	assert.Len(t, gotState, 32)
}

func TestAuthHandler_Callback_Success_SetsCookieAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*auth.LoginResult, error) {
			assert.Equal(t, "test-code", code)
			return loginResult("session-id-abc"), nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=test-code&state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "test-state"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Location"))

	cookie := findResponseCookie(resp, "session_id")
	require.NotNil(t, cookie)
	assert.Equal(t, "session-id-abc", cookie.Value)
}

func TestAuthHandler_Callback_StateErrors_ReturnBadRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		cookie string
	}{
		{"state mismatch", "/auth/google/callback?code=c&state=a", "b"},
		{"missing state cookie", "/auth/google/callback?code=c&state=a", ""},
		{"missing code", "/auth/google/callback?state=a", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{}, testAuthConfig)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "oauth_state", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.Callback(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_Callback_ServiceErrors_RedirectToLogin(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"email registered with password", model.NewEmailTakenError(), "OAuthAccountNotLinked"},
		{"provider failure", errors.New("token exchange failed"), "OAuthCallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				handleCallbackFn: func(ctx context.Context, code string) (*auth.LoginResult, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, testAuthConfig)

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=s", nil)
			req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s"})
			w := httptest.NewRecorder()
			h.Callback(w, req)

			resp := w.Result()
			require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/login", loc.Path)
			assert.Equal(t, tt.reason, loc.Query().Get("error"))
			assert.Nil(t, findResponseCookie(resp, "session_id"))
		})
	}
}

func TestAuthHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-abc"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "session-abc", loggedOut)

	cookie := findResponseCookie(resp, "session_id")
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestAuthHandler_Logout_NoSession_StillSucceeds(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, userID string) (*model.User, error) {
			return &model.User{ID: userID, Email: "ada@example.com", Name: "Ada", PasswordHash: "$2a$10$secret"}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Me(w, withUserID(httptest.NewRequest(http.MethodGet, "/auth/me", nil), "user-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Equal(t, "user-1", decodeBody[userResponse](t, w).ID)
}

func TestAuthHandler_Me_NoSession_ReturnsUnauthorized(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig)

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
