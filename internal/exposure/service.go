// Package exposure はカードの公開ID発行と公開IDからのカード解決を提供する。
package exposure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/meishi/internal/metrics"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/publicid"
	"github.com/hitoshi/meishi/internal/repository"
)

// MaxAttempts は公開IDの衝突時に生成をやり直す最大回数。
const MaxAttempts = 5

// issueTimeout は呼び出し元のキャンセルから切り離した発行処理の上限時間。
const issueTimeout = 10 * time.Second

// Service は公開IDの発行と解決を行うサービス層。
//
// 1カードにつき公開IDは高々1つで、カードが削除されるまで変化しない。
// 同一プロセス内の同時発行はsingleflightで1回にまとめ、プロセス間の競合は
// card_exposuresのcard_id一意制約で解決する（敗者は勝者のIDを読み直して返す）。
type Service struct {
	cards     repository.CardRepository
	exposures repository.ExposureRepository
	metrics   metrics.MetricsCollector
	generate  publicid.Generator
	now       func() time.Time
	group     singleflight.Group
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	cards repository.CardRepository,
	exposures repository.ExposureRepository,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		cards:     cards,
		exposures: exposures,
		metrics:   collector,
		generate:  publicid.Generate,
		now:       time.Now,
	}
}

// EnsurePublicID はカードの公開IDを返す。未発行の場合は新たに発行する。
// カードが存在しないか所有者が異なる場合はCARD_NOT_FOUNDを返す。
func (s *Service) EnsurePublicID(ctx context.Context, cardID, ownerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	card, err := s.cards.FindByIDAndUser(ctx, cardID, ownerID)
	if err != nil {
		return "", fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if card == nil {
		return "", model.NewCardNotFoundError(cardID)
	}

	// 発行処理は同じカードを待つ全員で共有するため、最初の呼び出し元のキャンセルを引き継がない。
	// 各呼び出し元は自身のctxでのみ待機を打ち切る。
	ch := s.group.DoChan(card.ID, func() (any, error) {
		issueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), issueTimeout)
		defer cancel()
		return s.ensure(issueCtx, card.ID)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Service) ensure(ctx context.Context, cardID string) (string, error) {
	existing, err := s.exposures.FindByCardID(ctx, cardID)
	if err != nil {
		return "", fmt.Errorf("公開IDの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing.PublicID, nil
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		id, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("公開IDの生成に失敗しました: %w", err)
		}

		err = s.exposures.Create(ctx, &model.Exposure{
			ID:        uuid.New().String(),
			CardID:    cardID,
			PublicID:  id,
			CreatedAt: s.now(),
		})
		switch {
		case err == nil:
			s.metrics.RecordExposureIssued()
			slog.Info("public id issued", slog.String("card_id", cardID), slog.Int("attempt", attempt))
			return id, nil

		case errors.Is(err, repository.ErrExposureExists):
			// 他のリクエストが先に発行した
			winner, err := s.exposures.FindByCardID(ctx, cardID)
			if err != nil {
				return "", fmt.Errorf("公開IDの再取得に失敗しました: %w", err)
			}
			if winner == nil {
				return "", fmt.Errorf("公開IDの再取得に失敗しました: card_id=%s", cardID)
			}
			return winner.PublicID, nil

		case errors.Is(err, repository.ErrPublicIDTaken):
			s.metrics.RecordIssuanceRetry()
			slog.Warn("public id collision, regenerating",
				slog.String("card_id", cardID),
				slog.Int("attempt", attempt),
			)

		case errors.Is(err, repository.ErrCardNotFound):
			return "", model.NewCardNotFoundError(cardID)

		default:
			return "", fmt.Errorf("公開IDの登録に失敗しました: %w", err)
		}
	}

	s.metrics.RecordIssuanceFailure()
	slog.Error("public id issuance failed",
		slog.String("card_id", cardID),
		slog.Int("attempts", MaxAttempts),
	)
	return "", model.NewIssuanceFailedError()
}

// CurrentPublicID は発行済みの公開IDを返す。未発行の場合は空文字列を返し、発行は行わない。
func (s *Service) CurrentPublicID(ctx context.Context, cardID string) (string, error) {
	e, err := s.exposures.FindByCardID(ctx, cardID)
	if err != nil {
		return "", fmt.Errorf("公開IDの取得に失敗しました: %w", err)
	}
	if e == nil {
		return "", nil
	}
	return e.PublicID, nil
}

// ResolvePublic は公開IDからカードとSNSリンクを取得する。認証は不要。
// 公開IDが存在しない場合（カード削除済みを含む）はCARD_NOT_FOUNDを返す。
func (s *Service) ResolvePublic(ctx context.Context, publicID string) (*model.CardDetail, error) {
	if !publicid.Valid(publicID) {
		return nil, model.NewCardNotFoundError(publicID)
	}

	e, err := s.exposures.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("公開IDの取得に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewCardNotFoundError(publicID)
	}

	card, err := s.cards.FindByID(ctx, e.CardID)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if card == nil {
		return nil, model.NewCardNotFoundError(publicID)
	}

	links, err := s.cards.ListSocialLinks(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("SNSリンクの取得に失敗しました: %w", err)
	}

	return &model.CardDetail{Card: *card, SocialLinks: links, PublicID: e.PublicID}, nil
}

// PublicURL は公開IDからカード公開ページのURLを組み立てる。
func PublicURL(baseURL, publicID string) string {
	return strings.TrimRight(baseURL, "/") + "/vcard/" + publicID
}
