package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/meishi/internal/metrics"
	"github.com/hitoshi/meishi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler // nilの場合 /metrics は公開しない
	HealthChecker  HealthChecker

	// ミドルウェア依存
	SessionFinder      middleware.SessionFinder
	TokenParser        middleware.TokenParser
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	RateLimiter        *middleware.RateLimiter
	HSTS               bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カードと公開
	CardService     CardServiceInterface
	ExposureService ExposureServiceInterface
	ScanService     ScanServiceInterface
	Templates       TemplateLister

	// 集計
	AnalyticsService AnalyticsServiceInterface

	// チーム
	TeamService TeamServiceInterface

	// アップロード（nilの場合は503を返す）
	UploadService UploadServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → RealIP → Logging → CORS → SecurityHeaders
//	  公開ルート:   RateLimit(Public)
//	  認証ルート:   Session → CSRF → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	cardHandler := NewCardHandler(deps.CardService, deps.ExposureService)
	publicHandler := NewPublicHandler(deps.ExposureService, deps.ScanService)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService)
	teamHandler := NewTeamHandler(deps.TeamService)
	uploadHandler := NewUploadHandler(deps.UploadService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	sessionMW := middleware.NewSessionMiddleware(deps.SessionFinder, deps.TokenParser)
	csrfMW := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.PublicMiddleware())
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.PasswordLogin)
			if deps.AuthService.OAuthEnabled() {
				r.Get("/google/login", authHandler.Login)
				r.Get("/google/callback", authHandler.Callback)
			}
		})

		r.Post("/logout", authHandler.Logout)
		r.With(sessionMW).Get("/me", authHandler.Me)
	})

	// --- 認証不要の公開ルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.PublicMiddleware())

		r.Get("/api/public/{publicId}", publicHandler.View)
		r.Get("/api/public/{publicId}/vcard", publicHandler.VCard)
		r.Post("/api/scan-log", publicHandler.ScanLog)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(sessionMW)
		r.Use(csrfMW)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/cards", func(r chi.Router) {
			r.Get("/", cardHandler.List)
			// カード作成は専用のレート制限を追加
			r.With(deps.RateLimiter.CardCreateMiddleware()).Post("/", cardHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cardHandler.Get)
				r.Put("/", cardHandler.Update)
				r.Delete("/", cardHandler.Delete)
				r.Post("/exposure", cardHandler.Expose)
				r.Get("/qr", cardHandler.QRCode)
			})
		})

		r.Get("/api/templates", NewTemplateListHandler(deps.Templates))

		r.Route("/api/analytics", func(r chi.Router) {
			r.Get("/", analyticsHandler.Get)
			r.Get("/export", analyticsHandler.Export)
		})

		r.Route("/api/teams", func(r chi.Router) {
			r.Get("/", teamHandler.List)
			r.Post("/", teamHandler.Create)
			r.Get("/{id}/members", teamHandler.ListMembers)
			r.Post("/{id}/members", teamHandler.AddMember)
		})

		r.Post("/api/upload", uploadHandler.Presign)

		r.Delete("/api/users/me", userHandler.Withdraw)
	})

	return r
}
