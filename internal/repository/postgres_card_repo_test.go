package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/meishi/internal/model"
)

var cardRowColumns = []string{
	"id", "user_id", "name", "email", "phone", "website", "company", "position", "address", "bio",
	"template", "primary_color", "profile_image_url", "enable_nfc", "created_at", "updated_at",
}

func TestPostgresCardRepo_Create_InsertsCardAndLinksInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCardRepo(db)

	company := "Analytical Engines"
	card := &model.Card{
		ID: "card-1", UserID: "user-1", Name: "Ada", Email: "a@x.com", Phone: "555",
		Company: &company, Template: model.DefaultTemplate, PrimaryColor: model.DefaultPrimaryColor,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	links := []model.SocialLink{
		{Platform: "github", URL: "https://github.com/ada"},
		{Platform: "linkedin", URL: "https://linkedin.com/in/ada"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cards`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO social_links`).
		WithArgs(sqlmock.AnyArg(), "card-1", "github", "https://github.com/ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO social_links`).
		WithArgs(sqlmock.AnyArg(), "card-1", "linkedin", "https://linkedin.com/in/ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), card, links))
	for _, l := range links {
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "card-1", l.CardID)
	}
}

func TestPostgresCardRepo_Create_RollsBackOnLinkFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCardRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cards`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO social_links`).WillReturnError(uniqueViolation("social_links_card_id_platform_key"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.Card{ID: "card-1"}, []model.SocialLink{{Platform: "github", URL: "u"}})
	assert.Error(t, err)
}

func TestPostgresCardRepo_FindByIDAndUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("所有者が一致する", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresCardRepo(db)

		mock.ExpectQuery(`FROM cards WHERE id = \$1 AND user_id = \$2`).
			WithArgs("card-1", "user-1").
			WillReturnRows(sqlmock.NewRows(cardRowColumns).AddRow(
				"card-1", "user-1", "Ada", "a@x.com", "555", "https://ada.dev", nil, nil, nil, nil,
				"template2", "#000000", nil, true, now, now,
			))

		card, err := repo.FindByIDAndUser(context.Background(), "card-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, "Ada", card.Name)
		require.NotNil(t, card.Website)
		assert.Equal(t, "https://ada.dev", *card.Website)
		assert.Nil(t, card.Company)
		assert.True(t, card.EnableNFC)
	})

	t.Run("見つからない場合はnil", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresCardRepo(db)

		mock.ExpectQuery(`FROM cards WHERE id = \$1 AND user_id = \$2`).
			WithArgs("card-1", "other").
			WillReturnError(sql.ErrNoRows)

		card, err := repo.FindByIDAndUser(context.Background(), "card-1", "other")
		assert.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("UUIDでないIDは見つからない扱い", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresCardRepo(db)

		mock.ExpectQuery(`FROM cards WHERE id = \$1 AND user_id = \$2`).
			WillReturnError(&pq.Error{Code: pqInvalidText})

		card, err := repo.FindByIDAndUser(context.Background(), "not-a-uuid", "user-1")
		assert.NoError(t, err)
		assert.Nil(t, card)
	})
}

func TestPostgresCardRepo_Update_NotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCardRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cards SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &model.Card{ID: "card-1", UserID: "other"}, nil)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestPostgresCardRepo_Update_ReplacesLinks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCardRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cards SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM social_links WHERE card_id = \$1`).WithArgs("card-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO social_links`).
		WithArgs(sqlmock.AnyArg(), "card-1", "twitter", "https://x.com/ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), &model.Card{ID: "card-1", UserID: "user-1"},
		[]model.SocialLink{{Platform: "twitter", URL: "https://x.com/ada"}})
	assert.NoError(t, err)
}

func TestPostgresCardRepo_Update_NilLinksKeepsExisting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCardRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cards SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Update(context.Background(), &model.Card{ID: "card-1", UserID: "user-1"}, nil))
}

func TestPostgresCardRepo_Delete(t *testing.T) {
	t.Run("削除成功", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresCardRepo(db)

		mock.ExpectExec(`DELETE FROM cards WHERE id = \$1 AND user_id = \$2`).
			WithArgs("card-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(context.Background(), "card-1", "user-1"))
	})

	t.Run("他ユーザーのカードは削除できない", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresCardRepo(db)

		mock.ExpectExec(`DELETE FROM cards WHERE id = \$1 AND user_id = \$2`).
			WithArgs("card-1", "other").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(context.Background(), "card-1", "other"), ErrCardNotFound)
	})
}

func TestPostgresCardRepo_ListSocialLinks_EmptyIsNotNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCardRepo(db)

	mock.ExpectQuery(`FROM social_links WHERE card_id = \$1`).
		WithArgs("card-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_id", "platform", "url"}))

	links, err := repo.ListSocialLinks(context.Background(), "card-1")
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}
