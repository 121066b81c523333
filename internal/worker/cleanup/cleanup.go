// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れセッションと、保持期間を超過したスキャン記録を削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ScanPurger は指定日時より前のスキャン記録を削除する。
type ScanPurger interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れデータの削除ジョブ。
// 冪等であり、削除対象が無くてもエラーにならない。
type CleanupJob struct {
	sessions      SessionPurger
	scans         ScanPurger
	logger        *slog.Logger
	RetentionDays int // スキャン記録の保持日数。0以下の場合は削除しない
	now           func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, scans ScanPurger, retentionDays int, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		scans:         scans,
		logger:        logger,
		RetentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run は1回分のクリーンアップを実行する。
// 片方の削除に失敗してももう片方は実行し、両方のエラーをまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	var errs []error

	sessionCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("期限切れセッションの削除に失敗: %w", err))
	}

	var scanCount int64
	if j.scans != nil && j.RetentionDays > 0 {
		cutoff := j.now().UTC().AddDate(0, 0, -j.RetentionDays)
		scanCount, err = j.scans.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			j.logger.Error("スキャン記録の削除に失敗しました",
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RetentionDays),
			)
			errs = append(errs, fmt.Errorf("スキャン記録の削除に失敗: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_scans", scanCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// エラーはRun内でログ出力済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
