// Package scan は公開カードの閲覧（スキャン）記録を提供する。
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/meishi/internal/metrics"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
)

// Service はスキャン記録のサービス層。
//
// 記録の失敗は公開ページの表示を妨げてはならないため、
// 永続化エラーはログとメトリクスに残して呼び出し元には返さない。
type Service struct {
	scans   repository.ScanRepository
	deduper Deduper
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// deduperがnilの場合は全ての閲覧を記録する。
func NewService(scans repository.ScanRepository, deduper Deduper, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		scans:   scans,
		deduper: deduper,
		metrics: collector,
		now:     time.Now,
	}
}

// Record は公開ビューアからの明示的なスキャン記録を行う。
// scanType・deviceTypeは大文字小文字を区別しない。
// 不正な値はINVALID_INPUT、存在しないカードはCARD_NOT_FOUNDを返す。
func (s *Service) Record(ctx context.Context, cardID, scanType, deviceType, clientKey string) error {
	if cardID == "" {
		return model.NewInvalidInputError("cardIdは必須です")
	}
	st, ok := model.ParseScanType(scanType)
	if !ok {
		return model.NewInvalidInputError("scanTypeはQRまたはNFCを指定してください")
	}
	dc, ok := model.ParseDeviceClass(deviceType)
	if !ok {
		return model.NewInvalidInputError("deviceTypeはmobile、tablet、desktopのいずれかを指定してください")
	}

	err := s.record(ctx, cardID, st, dc, clientKey)
	if errors.Is(err, repository.ErrCardNotFound) {
		return model.NewCardNotFoundError(cardID)
	}
	return nil
}

// RecordView は公開カードの表示に伴うスキャンを記録する。
// 端末分類はUser-Agentから判定し、ボットのアクセスは記録しない。
// エラーは返さず、記録したかどうかのみを返す。
func (s *Service) RecordView(ctx context.Context, cardID string, via model.ScanType, userAgent, clientKey string) bool {
	if IsBot(userAgent) {
		s.metrics.RecordScanDropped(metrics.DropReasonBot)
		return false
	}
	return s.record(ctx, cardID, via, ClassifyDevice(userAgent), clientKey) == nil
}

// record は重複判定の後にスキャンを保存する。
// 重複で記録しなかった場合はerrSkippedを返す。ErrCardNotFound以外の失敗はここでログに残す。
// 保存に失敗した場合は確保した時間枠を取り消し、記録されていない閲覧で後続を弾かないようにする。
func (s *Service) record(ctx context.Context, cardID string, st model.ScanType, dc model.DeviceClass, clientKey string) error {
	var claimed string
	if s.deduper != nil && clientKey != "" {
		key := fmt.Sprintf("%s:%s", cardID, clientKey)
		first, err := s.deduper.FirstSeen(ctx, key)
		switch {
		case err != nil:
			// 重複判定が使えない場合は記録する側に倒す
			slog.Warn("scan dedup unavailable", slog.String("card_id", cardID), slog.String("error", err.Error()))
		case !first:
			s.metrics.RecordScanDropped(metrics.DropReasonDuplicate)
			return errSkipped
		default:
			claimed = key
		}
	}

	err := s.scans.Create(ctx, &model.ScanEvent{
		ID:          uuid.New().String(),
		CardID:      cardID,
		ScanType:    st,
		DeviceClass: dc,
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.metrics.RecordScanDropped(metrics.DropReasonError)
		if claimed != "" {
			s.forget(ctx, cardID, claimed)
		}
		if errors.Is(err, repository.ErrCardNotFound) {
			return err
		}
		slog.Error("failed to record scan",
			slog.String("card_id", cardID),
			slog.String("scan_type", string(st)),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.metrics.RecordScan(string(st), string(dc))
	return nil
}

// forget は時間枠を取り消す。リクエストが切断されていても取り消しは行う。
func (s *Service) forget(ctx context.Context, cardID, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forgetTimeout)
	defer cancel()
	if err := s.deduper.Forget(ctx, key); err != nil {
		slog.Warn("failed to release scan dedup window",
			slog.String("card_id", cardID),
			slog.String("error", err.Error()),
		)
	}
}

const forgetTimeout = 2 * time.Second

var errSkipped = errors.New("scan skipped as duplicate")
