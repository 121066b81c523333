package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/meishi/internal/model"
)

var membershipRowColumns = []string{
	"id", "team_id", "user_id", "role", "create_cards", "edit_cards", "delete_cards", "manage_team", "created_at",
}

func TestPostgresTeamRepo_CreateWithMembership(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTeamRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO teams`).
		WithArgs("team-1", "Sales", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO team_members`).
		WithArgs("m-1", "team-1", "user-1", model.RoleAdmin, true, true, true, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithMembership(context.Background(),
		&model.Team{ID: "team-1", Name: "Sales", CreatedAt: now, UpdatedAt: now},
		&model.Membership{ID: "m-1", TeamID: "team-1", UserID: "user-1", Role: model.RoleAdmin, Permissions: model.FullPermissions(), CreatedAt: now},
	)
	assert.NoError(t, err)
}

func TestPostgresTeamRepo_AddMember_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTeamRepo(db)

	mock.ExpectExec(`INSERT INTO team_members`).
		WillReturnError(uniqueViolation("team_members_team_id_user_id_key"))

	err := repo.AddMember(context.Background(), &model.Membership{ID: "m-2", TeamID: "team-1", UserID: "user-2"})
	assert.ErrorIs(t, err, ErrDuplicateMembership)
}

func TestPostgresTeamRepo_FindMembership(t *testing.T) {
	t.Run("権限を読み取る", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresTeamRepo(db)

		mock.ExpectQuery(`FROM team_members m WHERE m.team_id = \$1 AND m.user_id = \$2`).
			WithArgs("team-1", "user-1").
			WillReturnRows(sqlmock.NewRows(membershipRowColumns).
				AddRow("m-1", "team-1", "user-1", "member", true, false, false, true, time.Now()))

		m, err := repo.FindMembership(context.Background(), "team-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, model.Permissions{CreateCards: true, ManageTeam: true}, m.Permissions)
	})

	t.Run("所属していない場合はnil", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresTeamRepo(db)

		mock.ExpectQuery(`FROM team_members m`).WillReturnError(sql.ErrNoRows)

		m, err := repo.FindMembership(context.Background(), "team-1", "user-9")
		assert.NoError(t, err)
		assert.Nil(t, m)
	})
}

func TestPostgresTeamRepo_ListMembers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTeamRepo(db)
	now := time.Now()

	cols := append(append([]string{}, membershipRowColumns...), "uid", "name", "email", "image")
	mock.ExpectQuery(`JOIN users u ON u.id = m.user_id\s+WHERE m.team_id = \$1`).
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("m-1", "team-1", "user-1", "admin", true, true, true, true, now, "user-1", "Ada", "a@x.com", "").
			AddRow("m-2", "team-1", "user-2", "member", false, false, false, false, now, "user-2", "Bob", "b@x.com", ""))

	members, err := repo.ListMembers(context.Background(), "team-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ada", members[0].User.Name)
	assert.False(t, members[1].Permissions.ManageTeam)
}

func TestPostgresTeamRepo_ListByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresTeamRepo(db)
	now := time.Now()

	cols := append(append([]string{}, membershipRowColumns...), "tid", "name", "description", "t_created", "t_updated")
	mock.ExpectQuery(`JOIN teams t ON t.id = m.team_id\s+WHERE m.user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("m-1", "team-1", "user-1", "admin", true, true, true, true, now, "team-1", "Sales", "EMEA", now, now))

	teams, err := repo.ListByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Sales", teams[0].Team.Name)
	require.NotNil(t, teams[0].Team.Description)
	assert.Equal(t, "EMEA", *teams[0].Team.Description)
}
