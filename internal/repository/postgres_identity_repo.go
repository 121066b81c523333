package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/meishi/internal/model"
)

// PostgresIdentityRepo は外部ログインプロバイダーとユーザーの紐付けを管理する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const identityColumns = `id, user_id, provider, provider_user_id, created_at`

func scanIdentity(row interface{ Scan(...any) error }) (*model.Identity, error) {
	identity := &model.Identity{}
	if err := row.Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt); err != nil {
		return nil, err
	}
	return identity, nil
}

// FindByProviderAndProviderUserID はプロバイダー側のユーザーIDで紐付けを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	identity, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("外部ログイン情報の取得に失敗しました: %w", err)
	}
	return identity, nil
}

// insertIdentity はトランザクション内で紐付けを作成する。
// 同じプロバイダーIDが既に紐付いている場合はErrIdentityLinkedを返す。
func insertIdentity(ctx context.Context, tx *sql.Tx, identity *model.Identity) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if isUniqueViolation(err, "identities_provider_provider_user_id_key") {
		return ErrIdentityLinked
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("紐付け先のユーザーが存在しません: %s", identity.UserID)
	}
	if err != nil {
		return fmt.Errorf("外部ログイン情報の作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
