package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/meishi/internal/model"
)

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var snapshotTxOptions = sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// PostgresAnalyticsRepo はPostgreSQLを使用した集計リポジトリ。
// 各クエリはcardsとJOINしてuser_idで絞り込み、他ユーザーのデータを集計しない。
type PostgresAnalyticsRepo struct {
	db *sql.DB
	q  queryer
}

// NewPostgresAnalyticsRepo はPostgresAnalyticsRepoを生成する。
func NewPostgresAnalyticsRepo(db *sql.DB) *PostgresAnalyticsRepo {
	return &PostgresAnalyticsRepo{db: db, q: db}
}

// Snapshot は読み取り専用のREPEATABLE READトランザクションを開始し、
// その中で実行するリポジトリをfnに渡す。fn内のクエリはすべて同じ時点のデータを参照する。
// トランザクションは1接続を占有するため、fn内のクエリは逐次に実行すること。
func (r *PostgresAnalyticsRepo) Snapshot(ctx context.Context, fn func(AnalyticsRepository) error) error {
	if r.db == nil {
		// すでにスナップショット内
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, &snapshotTxOptions)
	if err != nil {
		return fmt.Errorf("集計トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresAnalyticsRepo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("集計トランザクションの終了に失敗しました: %w", err)
	}
	return nil
}

// CountCards はユーザーのカード総数を返す。
func (r *PostgresAnalyticsRepo) CountCards(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE user_id = $1`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("カード数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// CountCardsSince は期間内に作成されたカード数を返す。
func (r *PostgresAnalyticsRepo) CountCardsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE user_id = $1 AND created_at >= $2`, userID, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("新規カード数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// CountScansByType は期間内のスキャン数を経路別に返す。スキャンの無い経路はキーを持たない。
func (r *PostgresAnalyticsRepo) CountScansByType(ctx context.Context, userID string, since time.Time) (map[model.ScanType]int, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT se.scan_type, COUNT(*)
		 FROM scan_events se
		 JOIN cards c ON c.id = se.card_id
		 WHERE c.user_id = $1 AND se.created_at >= $2
		 GROUP BY se.scan_type`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("経路別スキャン数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ScanType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("経路別スキャン数の読み取りに失敗しました: %w", err)
		}
		counts[model.ScanType(t)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("経路別スキャン数の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// CountScansByDevice は期間内のスキャン数を端末分類別に返す。
func (r *PostgresAnalyticsRepo) CountScansByDevice(ctx context.Context, userID string, since time.Time) (map[model.DeviceClass]int, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT se.device_class, COUNT(*)
		 FROM scan_events se
		 JOIN cards c ON c.id = se.card_id
		 WHERE c.user_id = $1 AND se.created_at >= $2
		 GROUP BY se.device_class`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("端末別スキャン数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.DeviceClass]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("端末別スキャン数の読み取りに失敗しました: %w", err)
		}
		counts[model.DeviceClass(d)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("端末別スキャン数の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// DailyScans はUTCの日単位でスキャン数を集計する。
// GROUP BYの結果なのでスキャンの無い日は含まれない。
func (r *PostgresAnalyticsRepo) DailyScans(ctx context.Context, userID string, since time.Time) ([]DayCount, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT to_char(date_trunc('day', se.created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM scan_events se
		 JOIN cards c ON c.id = se.card_id
		 WHERE c.user_id = $1 AND se.created_at >= $2
		 GROUP BY day
		 ORDER BY day ASC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("日別スキャン数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	days := []DayCount{}
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("日別スキャン数の読み取りに失敗しました: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日別スキャン数の走査に失敗しました: %w", err)
	}
	return days, nil
}

// TopCards は期間内のスキャン数が多いカードを返す。スキャンの無いカードも0件として含む。
func (r *PostgresAnalyticsRepo) TopCards(ctx context.Context, userID string, since time.Time, limit int) ([]CardScanCount, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT c.id, c.name, COUNT(se.id) AS scans
		 FROM cards c
		 LEFT JOIN scan_events se ON se.card_id = c.id AND se.created_at >= $2
		 WHERE c.user_id = $1
		 GROUP BY c.id, c.name
		 ORDER BY scans DESC, c.id ASC
		 LIMIT $3`,
		userID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("上位カードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	top := []CardScanCount{}
	for rows.Next() {
		var c CardScanCount
		if err := rows.Scan(&c.CardID, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("上位カードの読み取りに失敗しました: %w", err)
		}
		top = append(top, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("上位カードの走査に失敗しました: %w", err)
	}
	return top, nil
}

// compile-time interface check
var _ AnalyticsRepository = (*PostgresAnalyticsRepo)(nil)
