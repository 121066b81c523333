package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/meishi/internal/model"
)

// card_exposures の一意制約名。衝突の種類を判別するために使用する。
const (
	exposureCardConstraint     = "card_exposures_card_id_key"
	exposurePublicIDConstraint = "card_exposures_public_id_key"
)

// PostgresExposureRepo はPostgreSQLを使用した公開IDリポジトリ。
type PostgresExposureRepo struct {
	db *sql.DB
}

// NewPostgresExposureRepo はPostgresExposureRepoを生成する。
func NewPostgresExposureRepo(db *sql.DB) *PostgresExposureRepo {
	return &PostgresExposureRepo{db: db}
}

// FindByCardID はカードの公開IDを取得する。見つからない場合はnilを返す。
func (r *PostgresExposureRepo) FindByCardID(ctx context.Context, cardID string) (*model.Exposure, error) {
	return r.findOne(ctx, `SELECT id, card_id, public_id, created_at FROM card_exposures WHERE card_id = $1`, cardID)
}

// FindByPublicID は公開IDから公開情報を取得する。見つからない場合はnilを返す。
func (r *PostgresExposureRepo) FindByPublicID(ctx context.Context, publicID string) (*model.Exposure, error) {
	return r.findOne(ctx, `SELECT id, card_id, public_id, created_at FROM card_exposures WHERE public_id = $1`, publicID)
}

func (r *PostgresExposureRepo) findOne(ctx context.Context, query, arg string) (*model.Exposure, error) {
	e := &model.Exposure{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&e.ID, &e.CardID, &e.PublicID, &e.CreatedAt)
	if err == sql.ErrNoRows || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("公開IDの取得に失敗しました: %w", err)
	}
	return e, nil
}

// Create は公開IDを登録する。
// 一意制約違反は制約名によってErrExposureExistsとErrPublicIDTakenに振り分ける。
func (r *PostgresExposureRepo) Create(ctx context.Context, exposure *model.Exposure) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO card_exposures (id, card_id, public_id, created_at) VALUES ($1, $2, $3, $4)`,
		exposure.ID, exposure.CardID, exposure.PublicID, exposure.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, exposureCardConstraint):
		return ErrExposureExists
	case isUniqueViolation(err, exposurePublicIDConstraint):
		return ErrPublicIDTaken
	case isForeignKeyViolation(err), isInvalidUUID(err):
		return ErrCardNotFound
	default:
		return fmt.Errorf("公開IDの登録に失敗しました: %w", err)
	}
}

// compile-time interface check
var _ ExposureRepository = (*PostgresExposureRepo)(nil)
