package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// corsMaxAge はプリフライト結果のキャッシュ秒数。
const corsMaxAge = 86400

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)は使用しない。
// 許可されていないOriginのリクエストにはCORSヘッダーを付与しない。
func NewCORSMiddleware(allowedOrigins ...string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			csrfHeaderName,
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}
