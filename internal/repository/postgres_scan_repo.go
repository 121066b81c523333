package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/meishi/internal/model"
)

// PostgresScanRepo はPostgreSQLを使用したスキャン記録リポジトリ。
type PostgresScanRepo struct {
	db *sql.DB
}

// NewPostgresScanRepo はPostgresScanRepoを生成する。
func NewPostgresScanRepo(db *sql.DB) *PostgresScanRepo {
	return &PostgresScanRepo{db: db}
}

// Create はスキャンを記録する。カードが存在しない場合はErrCardNotFoundを返す。
func (r *PostgresScanRepo) Create(ctx context.Context, event *model.ScanEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_events (id, card_id, scan_type, device_class, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.CardID, string(event.ScanType), string(event.DeviceClass), event.CreatedAt,
	)
	if isForeignKeyViolation(err) || isInvalidUUID(err) {
		return ErrCardNotFound
	}
	if err != nil {
		return fmt.Errorf("スキャンの記録に失敗しました: %w", err)
	}
	return nil
}

// DeleteOlderThan は指定日時より前のスキャン記録を削除し、削除件数を返す。
func (r *PostgresScanRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scan_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("古いスキャン記録の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ScanRepository = (*PostgresScanRepo)(nil)
