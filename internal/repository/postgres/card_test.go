package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"cardshop/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

var cardRowColumns = []string{"id", "shop_id", "title", "image_path", "price", "created_at"}

func TestCardRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCardRepo(db)

	mock.ExpectQuery("INSERT INTO cards \\(shop_id, title, image_path, price\\)").
		WithArgs(int64(3), "Card1", "media/cards/3/a.jpg", 39.0).
		WillReturnRows(sqlmock.NewRows(cardRowColumns).AddRow(11, 3, "Card1", "media/cards/3/a.jpg", 39.0, time.Now()))

	card, err := repo.Create(context.Background(), &domain.Card{
		ShopID:    3,
		Title:     "Card1",
		ImagePath: "media/cards/3/a.jpg",
		Price:     39.0,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(11), card.ID)
	assert.Equal(t, 39.0, card.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_Create_UnknownShop(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCardRepo(db)

	mock.ExpectQuery("INSERT INTO cards").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "cards_shop_id_fkey"})

	card, err := repo.Create(context.Background(), &domain.Card{ShopID: 404, Title: "x", ImagePath: "p"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, card)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_GetByID(t *testing.T) {
	tests := []struct {
		name          string
		mockRows      *sqlmock.Rows
		mockError     error
		expectedError error
	}{
		{
			name:     "found",
			mockRows: sqlmock.NewRows(cardRowColumns).AddRow(5, 1, "Sunset", "img.jpg", 12.5, time.Now()),
		},
		{
			name:          "not found",
			mockError:     sql.ErrNoRows,
			expectedError: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer db.Close()

			repo := NewCardRepo(db)

			expect := mock.ExpectQuery("FROM cards WHERE id = \\$1").WithArgs(int64(5))
			if tt.mockError != nil {
				expect.WillReturnError(tt.mockError)
			} else {
				expect.WillReturnRows(tt.mockRows)
			}

			card, err := repo.GetByID(context.Background(), 5)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, card)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "Sunset", card.Title)
				assert.Equal(t, "Sunset — ₪12.50", card.Label())
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCardRepo_ListByShop(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCardRepo(db)

	rows := sqlmock.NewRows(cardRowColumns).
		AddRow(1, 2, "A", "a.jpg", 10.0, time.Now()).
		AddRow(2, 2, "B", "b.jpg", 20.0, time.Now())

	mock.ExpectQuery("FROM cards WHERE shop_id = \\$1 ORDER BY id").
		WithArgs(int64(2)).
		WillReturnRows(rows)

	cards, err := repo.ListByShop(context.Background(), 2)
	assert.NoError(t, err)
	assert.Len(t, cards, 2)
	assert.Equal(t, "A", cards[0].Title)
	assert.Equal(t, 20.0, cards[1].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepo_ListByShop_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCardRepo(db)

	mock.ExpectQuery("FROM cards WHERE shop_id").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(cardRowColumns))

	cards, err := repo.ListByShop(context.Background(), 9)
	assert.NoError(t, err)
	assert.Empty(t, cards)
	assert.NoError(t, mock.ExpectationsWereMet())
}
