package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/meishi/internal/model"
)

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
type PostgresTeamRepo struct {
	db *sql.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sql.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

const membershipColumns = `m.id, m.team_id, m.user_id, m.role,
	m.create_cards, m.edit_cards, m.delete_cards, m.manage_team, m.created_at`

func membershipDest(m *model.Membership) []any {
	return []any{
		&m.ID, &m.TeamID, &m.UserID, &m.Role,
		&m.Permissions.CreateCards, &m.Permissions.EditCards, &m.Permissions.DeleteCards, &m.Permissions.ManageTeam,
		&m.CreatedAt,
	}
}

// CreateWithMembership はチームと作成者の所属を同一トランザクションで作成する。
func (r *PostgresTeamRepo) CreateWithMembership(ctx context.Context, team *model.Team, membership *model.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		team.ID, team.Name, team.Description, team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チームの作成に失敗しました: %w", err)
	}

	if err := insertMembership(ctx, tx, membership); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMembership(ctx context.Context, db execer, m *model.Membership) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO team_members (id, team_id, user_id, role, create_cards, edit_cards, delete_cards, manage_team, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.TeamID, m.UserID, m.Role,
		m.Permissions.CreateCards, m.Permissions.EditCards, m.Permissions.DeleteCards, m.Permissions.ManageTeam,
		m.CreatedAt,
	)
	if isUniqueViolation(err, "team_members_team_id_user_id_key") {
		return ErrDuplicateMembership
	}
	if err != nil {
		return fmt.Errorf("チーム所属の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	t := &model.Team{}
	var desc sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM teams WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &desc, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	t.Description = nullStringPtr(desc)
	return t, nil
}

// FindMembership はチームとユーザーの所属を取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindMembership(ctx context.Context, teamID, userID string) (*model.Membership, error) {
	m := &model.Membership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM team_members m WHERE m.team_id = $1 AND m.user_id = $2`,
		teamID, userID,
	).Scan(membershipDest(m)...)
	if err == sql.ErrNoRows || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	return m, nil
}

// ListByUserID はユーザーの所属一覧をチーム情報付きで返す。
func (r *PostgresTeamRepo) ListByUserID(ctx context.Context, userID string) ([]model.MembershipWithTeam, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+`, t.id, t.name, t.description, t.created_at, t.updated_at
		 FROM team_members m
		 JOIN teams t ON t.id = m.team_id
		 WHERE m.user_id = $1
		 ORDER BY t.created_at DESC, t.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("所属チーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := []model.MembershipWithTeam{}
	for rows.Next() {
		var mt model.MembershipWithTeam
		var desc sql.NullString
		dest := append(membershipDest(&mt.Membership),
			&mt.Team.ID, &mt.Team.Name, &desc, &mt.Team.CreatedAt, &mt.Team.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("所属チーム行の読み取りに失敗しました: %w", err)
		}
		mt.Team.Description = nullStringPtr(desc)
		result = append(result, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("所属チーム一覧の走査に失敗しました: %w", err)
	}
	return result, nil
}

// ListMembers はチームのメンバー一覧をユーザー情報付きで返す。
func (r *PostgresTeamRepo) ListMembers(ctx context.Context, teamID string) ([]model.MembershipWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+`, u.id, u.name, u.email, u.image
		 FROM team_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.team_id = $1
		 ORDER BY m.created_at ASC, m.id ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := []model.MembershipWithUser{}
	for rows.Next() {
		var mu model.MembershipWithUser
		dest := append(membershipDest(&mu.Membership), &mu.User.ID, &mu.User.Name, &mu.User.Email, &mu.User.Image)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("メンバー行の読み取りに失敗しました: %w", err)
		}
		result = append(result, mu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メンバー一覧の走査に失敗しました: %w", err)
	}
	return result, nil
}

// AddMember は所属を作成する。既に所属している場合はErrDuplicateMembershipを返す。
func (r *PostgresTeamRepo) AddMember(ctx context.Context, membership *model.Membership) error {
	return insertMembership(ctx, r.db, membership)
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
