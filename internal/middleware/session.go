// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/meishi/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// AuthMethod はリクエストの認証方式を表す。
type AuthMethod string

const (
	AuthMethodCookie AuthMethod = "cookie"
	AuthMethodBearer AuthMethod = "bearer"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey     = contextKey("user_id")
	authMethodContextKey = contextKey("auth_method")
)

// ErrNoUserInContext はコンテキストにユーザーIDが存在しないことを表す。
var ErrNoUserInContext = errors.New("user ID not found in context")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
// 期限切れのセッションに対しては(nil, nil)を返す。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// TokenParser はBearerトークンを検証してユーザーIDを返す。
// auth.TokenServiceが実装する。
type TokenParser interface {
	Parse(token string) (string, error)
}

// NewSessionMiddleware はリクエストの認証主体を解決するミドルウェアを返す。
// Authorizationヘッダーがあればトークンを、なければセッションCookieを検証する。
// ヘッダーが不正な場合はCookieにフォールバックしない。
// tokensがnilの場合はCookie認証のみを受け付ける。
func NewSessionMiddleware(sessions SessionFinder, tokens TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := r.Header.Get("Authorization"); header != "" {
				userID, ok := resolveBearer(header, tokens)
				if !ok {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
					return
				}
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID, AuthMethodBearer)))
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := sessions.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), session.UserID, AuthMethodCookie)))
		})
	}
}

func resolveBearer(header string, tokens TokenParser) (string, bool) {
	if tokens == nil {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	userID, err := tokens.Parse(token)
	if err != nil {
		slog.Debug("bearer token rejected", slog.String("error", err.Error()))
		return "", false
	}
	return userID, true
}

func withIdentity(ctx context.Context, userID string, method AuthMethod) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	ctx = context.WithValue(ctx, authMethodContextKey, method)
	// リクエストログ用に外側のミドルウェアへユーザーIDを伝える
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
	return ctx
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserInContext
	}
	return userID, nil
}

// AuthMethodFromContext は認証方式を返す。未認証の場合は空文字列。
func AuthMethodFromContext(ctx context.Context) AuthMethod {
	method, _ := ctx.Value(authMethodContextKey).(AuthMethod)
	return method
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
