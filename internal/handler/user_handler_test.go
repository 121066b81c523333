package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/meishi/internal/model"
)

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

func TestUserHandler_Withdraw_Success(t *testing.T) {
	var withdrawn string
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawn = userID
			return nil
		},
	}
	h := NewUserHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Withdraw(w, withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-1"))

	resp := w.Result()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "user-1", withdrawn)

	cookie := findResponseCookie(resp, "session_id")
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestUserHandler_Withdraw_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"user not found", model.NewUserNotFoundError(), http.StatusNotFound},
		{"database error", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				withdrawFn: func(ctx context.Context, userID string) error { return tt.err },
			}
			h := NewUserHandler(svc, testAuthConfig)

			w := httptest.NewRecorder()
			h.Withdraw(w, withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-1"))

			assert.Equal(t, tt.want, w.Code)
			assert.Nil(t, findResponseCookie(w.Result(), "session_id"), "cookie must survive a failed withdrawal")
		})
	}
}

func TestUserHandler_Withdraw_NoUser_ReturnsUnauthorized(t *testing.T) {
	called := false
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			called = true
			return nil
		},
	}
	h := NewUserHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Withdraw(w, httptest.NewRequest(http.MethodDelete, "/api/users/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}
