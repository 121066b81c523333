// Package upload はプロフィール画像アップロード用の署名付きURLを発行する。
// ファイル本体はクライアントからオブジェクトストレージへ直接PUTされ、このサービスは中継しない。
package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hitoshi/meishi/internal/model"
)

// DefaultTTL は署名付きURLの有効期間のデフォルト値。
const DefaultTTL = time.Hour

// allowedTypes はアップロードを許可するContent-Typeと拡張子の対応。
var allowedTypes = map[string][]string{
	"image/jpeg": {"jpg", "jpeg"},
	"image/png":  {"png"},
	"image/gif":  {"gif"},
	"image/webp": {"webp"},
}

// Presigner は署名付きPUTリクエストを生成するインターフェース。
// s3.PresignClientを抽象化する。
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config はS3接続設定。
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	TTL             time.Duration
}

// Enabled はアップロードに必要な設定が揃っているかを返す。
func (c Config) Enabled() bool {
	return c.Region != "" && c.Bucket != "" && c.PublicBaseURL != ""
}

// NewS3Presigner は設定からS3の署名クライアントを生成する。
// アクセスキーが未設定の場合はSDKのデフォルト認証情報チェーンを使用する。
func NewS3Presigner(ctx context.Context, cfg Config) (*s3.PresignClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewPresignClient(s3.NewFromConfig(awsCfg)), nil
}

// Result は署名付きURLの発行結果。
type Result struct {
	UploadURL string
	FileURL   string
	Key       string
	ExpiresIn time.Duration
}

// Service は画像アップロード用URLの発行を行うサービス層。
type Service struct {
	presigner     Presigner
	bucket        string
	publicBaseURL string
	ttl           time.Duration
	randomID      func() (string, error)
}

// NewService はServiceの新しいインスタンスを生成する。
// ttlが0以下の場合はDefaultTTLを使用する。
func NewService(presigner Presigner, bucket, publicBaseURL string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		presigner:     presigner,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		ttl:           ttl,
		randomID:      randomHex,
	}
}

// PresignImageUpload は uploads/{userID}/{random}.{ext} への署名付きPUT URLを発行する。
// Content-Typeは画像のみ許可し、拡張子はファイル名から、無い場合はContent-Typeから決める。
func (s *Service) PresignImageUpload(ctx context.Context, userID, filename, contentType string) (*Result, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	filename = strings.TrimSpace(filename)
	if filename == "" || contentType == "" {
		return nil, model.NewInvalidInputError("filename and contentType are required")
	}
	exts, ok := allowedTypes[contentType]
	if !ok {
		return nil, model.NewInvalidInputError(fmt.Sprintf("unsupported content type: %s", contentType))
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = exts[0]
	} else if !contains(exts, ext) {
		return nil, model.NewInvalidInputError(fmt.Sprintf("file extension .%s does not match %s", ext, contentType))
	}

	id, err := s.randomID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate object key: %w", err)
	}
	key := fmt.Sprintf("uploads/%s/%s.%s", userID, id, ext)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	slog.Info("upload url issued", slog.String("user_id", userID), slog.String("key", key))
	return &Result{
		UploadURL: req.URL,
		FileURL:   s.publicBaseURL + "/" + key,
		Key:       key,
		ExpiresIn: s.ttl,
	}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func randomHex() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
