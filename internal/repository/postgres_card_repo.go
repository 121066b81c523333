package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/meishi/internal/model"
)

// PostgresCardRepo はPostgreSQLを使用したカードリポジトリ。
type PostgresCardRepo struct {
	db *sql.DB
}

// NewPostgresCardRepo はPostgresCardRepoを生成する。
func NewPostgresCardRepo(db *sql.DB) *PostgresCardRepo {
	return &PostgresCardRepo{db: db}
}

const cardColumns = `id, user_id, name, email, phone, website, company, position, address, bio,
	template, primary_color, profile_image_url, enable_nfc, created_at, updated_at`

func scanCard(row interface{ Scan(...any) error }) (*model.Card, error) {
	c := &model.Card{}
	var website, company, position, address, bio, image sql.NullString
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone,
		&website, &company, &position, &address, &bio,
		&c.Template, &c.PrimaryColor, &image, &c.EnableNFC, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Website = nullStringPtr(website)
	c.Company = nullStringPtr(company)
	c.Position = nullStringPtr(position)
	c.Address = nullStringPtr(address)
	c.Bio = nullStringPtr(bio)
	c.ProfileImageURL = nullStringPtr(image)
	return c, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create はカードとSNSリンクを同一トランザクションで作成する。
// SNSリンクのIDとCardIDはここで設定される。
func (r *PostgresCardRepo) Create(ctx context.Context, card *model.Card, links []model.SocialLink) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cards (id, user_id, name, email, phone, website, company, position, address, bio,
			template, primary_color, profile_image_url, enable_nfc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		card.ID, card.UserID, card.Name, card.Email, card.Phone,
		card.Website, card.Company, card.Position, card.Address, card.Bio,
		card.Template, card.PrimaryColor, card.ProfileImageURL, card.EnableNFC, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("カードの作成に失敗しました: %w", err)
	}

	if err := insertSocialLinks(ctx, tx, card.ID, links); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

func insertSocialLinks(ctx context.Context, tx *sql.Tx, cardID string, links []model.SocialLink) error {
	for i := range links {
		if links[i].ID == "" {
			links[i].ID = uuid.New().String()
		}
		links[i].CardID = cardID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO social_links (id, card_id, platform, url) VALUES ($1, $2, $3, $4)`,
			links[i].ID, cardID, links[i].Platform, links[i].URL,
		)
		if err != nil {
			return fmt.Errorf("SNSリンクの作成に失敗しました: %w", err)
		}
	}
	return nil
}

// FindByIDAndUser は所有者が一致するカードを取得する。見つからない場合はnilを返す。
func (r *PostgresCardRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Card, error) {
	card, err := scanCard(r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	return card, nil
}

// FindByID は所有者を問わずカードを取得する。見つからない場合はnilを返す。
func (r *PostgresCardRepo) FindByID(ctx context.Context, id string) (*model.Card, error) {
	card, err := scanCard(r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	return card, nil
}

// ListByUserID はユーザーのカード一覧を作成日時の降順で返す。
func (r *PostgresCardRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE user_id = $1 ORDER BY created_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var cards []*model.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("カード行の読み取りに失敗しました: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カード一覧の走査に失敗しました: %w", err)
	}
	return cards, nil
}

// ListSocialLinks はカードのSNSリンクをプラットフォーム名順で返す。
func (r *PostgresCardRepo) ListSocialLinks(ctx context.Context, cardID string) ([]model.SocialLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, platform, url FROM social_links WHERE card_id = $1 ORDER BY platform ASC`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("SNSリンクの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	links := []model.SocialLink{}
	for rows.Next() {
		var l model.SocialLink
		if err := rows.Scan(&l.ID, &l.CardID, &l.Platform, &l.URL); err != nil {
			return nil, fmt.Errorf("SNSリンク行の読み取りに失敗しました: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SNSリンクの走査に失敗しました: %w", err)
	}
	return links, nil
}

// Update はカードを更新する。linksがnilでない場合はSNSリンクを全件置き換える。
func (r *PostgresCardRepo) Update(ctx context.Context, card *model.Card, links []model.SocialLink) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE cards SET name = $3, email = $4, phone = $5, website = $6, company = $7, position = $8,
			address = $9, bio = $10, template = $11, primary_color = $12, profile_image_url = $13,
			enable_nfc = $14, updated_at = $15
		 WHERE id = $1 AND user_id = $2`,
		card.ID, card.UserID, card.Name, card.Email, card.Phone,
		card.Website, card.Company, card.Position, card.Address, card.Bio,
		card.Template, card.PrimaryColor, card.ProfileImageURL, card.EnableNFC, card.UpdatedAt,
	)
	if isInvalidUUID(err) {
		return ErrCardNotFound
	}
	if err != nil {
		return fmt.Errorf("カードの更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return ErrCardNotFound
	}

	if links != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM social_links WHERE card_id = $1`, card.ID); err != nil {
			return fmt.Errorf("SNSリンクの削除に失敗しました: %w", err)
		}
		if err := insertSocialLinks(ctx, tx, card.ID, links); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Delete は所有者が一致するカードを削除する。見つからない場合はErrCardNotFoundを返す。
func (r *PostgresCardRepo) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cards WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if isInvalidUUID(err) {
		return ErrCardNotFound
	}
	if err != nil {
		return fmt.Errorf("カードの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// compile-time interface check
var _ CardRepository = (*PostgresCardRepo)(nil)
