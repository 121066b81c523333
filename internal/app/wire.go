package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/meishi/internal/analytics"
	"github.com/hitoshi/meishi/internal/auth"
	"github.com/hitoshi/meishi/internal/card"
	"github.com/hitoshi/meishi/internal/cardtemplate"
	"github.com/hitoshi/meishi/internal/config"
	"github.com/hitoshi/meishi/internal/exposure"
	"github.com/hitoshi/meishi/internal/handler"
	"github.com/hitoshi/meishi/internal/metrics"
	"github.com/hitoshi/meishi/internal/middleware"
	"github.com/hitoshi/meishi/internal/repository"
	"github.com/hitoshi/meishi/internal/scan"
	"github.com/hitoshi/meishi/internal/security"
	"github.com/hitoshi/meishi/internal/team"
	"github.com/hitoshi/meishi/internal/upload"
	"github.com/hitoshi/meishi/internal/user"
)

// rateLimiterCleanupInterval はレートリミッターの期限切れエントリを掃除する間隔。
const rateLimiterCleanupInterval = 5 * time.Minute

// apiServer は組み立て済みのHTTPハンドラーと、停止時に解放するリソースを保持する。
type apiServer struct {
	handler http.Handler
	closers []func() error
}

// Close は保持しているリソースを逆順に解放する。
func (s *apiServer) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to release resource", slog.String("error", err.Error()))
		}
	}
}

// newAPIServer はリポジトリからハンドラーまでの全依存関係をワイヤリングする。
// Redisとオブジェクトストレージは設定されている場合のみ有効化する。
func newAPIServer(ctx context.Context, cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (*apiServer, error) {
	srv := &apiServer{}

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	cardRepo := repository.NewPostgresCardRepo(db)
	exposureRepo := repository.NewPostgresExposureRepo(db)
	scanRepo := repository.NewPostgresScanRepo(db)
	analyticsRepo := repository.NewPostgresAnalyticsRepo(db)
	teamRepo := repository.NewPostgresTeamRepo(db)

	// 2. 共通コンポーネント
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewTextSanitizer()
	catalog, err := cardtemplate.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load card templates: %w", err)
	}

	// 3. 認証
	tokens := auth.NewTokenService(cfg.SessionSecret, cfg.TokenTTL)
	var oauth auth.OAuthProvider
	if cfg.OAuthEnabled() {
		oauth = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	} else {
		slog.Info("google oauth is disabled")
	}
	authService := auth.NewService(oauth, userRepo, identRepo, sessionRepo, tokens, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})

	// 4. スキャン重複除外（任意）
	var deduper scan.Deduper
	if cfg.RedisURL != "" && cfg.ScanDedupWindow > 0 {
		d, err := scan.NewRedisDeduper(cfg.RedisURL, cfg.ScanDedupWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to configure scan deduplication: %w", err)
		}
		srv.closers = append(srv.closers, d.Close)
		deduper = d

		// 到達できなくても起動は継続する
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := d.Ping(pingCtx); err != nil {
			slog.Warn("redis is unreachable", slog.String("error", err.Error()))
		}
		cancel()
		slog.Info("scan deduplication enabled", slog.Duration("window", cfg.ScanDedupWindow))
	}

	// 5. 画像アップロード（任意）
	var uploadService handler.UploadServiceInterface
	uploadCfg := upload.Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Bucket:          cfg.S3BucketName,
		PublicBaseURL:   cfg.PublicS3URL,
		TTL:             cfg.UploadURLTTL,
	}
	if uploadCfg.Enabled() {
		presigner, err := upload.NewS3Presigner(ctx, uploadCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure object storage: %w", err)
		}
		uploadService = upload.NewService(presigner, uploadCfg.Bucket, uploadCfg.PublicBaseURL, uploadCfg.TTL)
	} else {
		slog.Info("image upload is disabled")
	}

	// 6. ドメインサービスの初期化
	exposureService := exposure.NewService(cardRepo, exposureRepo, collector)
	cardService := card.NewService(cardRepo, exposureService, sanitizer, catalog)
	scanService := scan.NewService(scanRepo, deduper, collector)
	analyticsService := analytics.NewService(analyticsRepo)
	teamService := team.NewService(teamRepo, userRepo, sanitizer)
	userService := user.NewService(userRepo, sessionRepo)

	// 7. ミドルウェア（req/min -> rate.Limit に変換）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     middleware.PerMinute(cfg.RateLimitGeneral),
		GeneralBurst:    cfg.RateLimitGeneral,
		CardCreateRate:  middleware.PerMinute(cfg.RateLimitCardCreate),
		CardCreateBurst: cfg.RateLimitCardCreate,
		PublicRate:      middleware.PerMinute(cfg.RateLimitPublic),
		PublicBurst:     cfg.RateLimitPublic,
		CleanupInterval: rateLimiterCleanupInterval,
	})
	srv.closers = append(srv.closers, func() error {
		rateLimiter.Stop()
		return nil
	})

	// 8. ルーターの構築
	srv.handler = handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		HealthChecker:  db,

		SessionFinder:      sessionRepo,
		TokenParser:        tokens,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		HSTS:        cfg.CookieSecure,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		CardService:      cardService,
		ExposureService:  handler.NewExposureServiceAdapter(exposureService, cfg.BaseURL),
		ScanService:      scanService,
		Templates:        catalog,
		AnalyticsService: analyticsService,
		TeamService:      teamService,
		UploadService:    uploadService,
		UserService:      userService,
	})

	return srv, nil
}
