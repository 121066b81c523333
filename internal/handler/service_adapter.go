package handler

import (
	"context"

	"github.com/hitoshi/meishi/internal/analytics"
	"github.com/hitoshi/meishi/internal/auth"
	"github.com/hitoshi/meishi/internal/card"
	"github.com/hitoshi/meishi/internal/cardtemplate"
	"github.com/hitoshi/meishi/internal/exposure"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/scan"
	"github.com/hitoshi/meishi/internal/team"
	"github.com/hitoshi/meishi/internal/upload"
	"github.com/hitoshi/meishi/internal/user"
)

// ExposureServiceAdapter は exposure.Service を ExposureServiceInterface に適合させるアダプタ。
// 公開URLの組み立てに使うベースURLを保持する。
type ExposureServiceAdapter struct {
	svc     *exposure.Service
	baseURL string
}

// NewExposureServiceAdapter はExposureServiceAdapterを生成する。
func NewExposureServiceAdapter(svc *exposure.Service, baseURL string) *ExposureServiceAdapter {
	return &ExposureServiceAdapter{svc: svc, baseURL: baseURL}
}

// Ensure はカードの公開IDを発行し（発行済みならそのまま）、公開URLと合わせて返す。
func (a *ExposureServiceAdapter) Ensure(ctx context.Context, cardID, ownerID string) (*exposureResponse, error) {
	publicID, err := a.svc.EnsurePublicID(ctx, cardID, ownerID)
	if err != nil {
		return nil, err
	}
	return &exposureResponse{PublicID: publicID, PublicURL: a.PublicURL(publicID)}, nil
}

// Resolve は公開IDからカードを取得する。
func (a *ExposureServiceAdapter) Resolve(ctx context.Context, publicID string) (*model.CardDetail, error) {
	return a.svc.ResolvePublic(ctx, publicID)
}

// PublicURL は公開ページのURLを返す。
func (a *ExposureServiceAdapter) PublicURL(publicID string) string {
	return exposure.PublicURL(a.baseURL, publicID)
}

// --- compile-time interface checks ---

var _ ExposureServiceInterface = (*ExposureServiceAdapter)(nil)
var _ CardServiceInterface = (*card.Service)(nil)
var _ ScanServiceInterface = (*scan.Service)(nil)
var _ AnalyticsServiceInterface = (*analytics.Service)(nil)
var _ TeamServiceInterface = (*team.Service)(nil)
var _ UploadServiceInterface = (*upload.Service)(nil)
var _ TemplateLister = (*cardtemplate.Catalog)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
