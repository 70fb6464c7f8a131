package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cardshop/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

var purchaseRowColumns = []string{"id", "user_id", "card_id", "token", "amount", "evidence_path", "created_at"}

func TestPurchaseRepo_Create(t *testing.T) {
	tests := []struct {
		name          string
		evidence      string
		mockError     error
		expectedError error
	}{
		{
			name: "instant purchase",
		},
		{
			name:     "with screenshot",
			evidence: "media/evidence/3/x.jpg",
		},
		{
			name:          "token collision",
			mockError:     &pq.Error{Code: "23505", Constraint: "purchases_token_key"},
			expectedError: domain.ErrConflict,
		},
		{
			name:          "unknown card",
			mockError:     &pq.Error{Code: "23503", Constraint: "purchases_card_id_fkey"},
			expectedError: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer db.Close()

			repo := NewPurchaseRepo(db)

			expect := mock.ExpectQuery("INSERT INTO purchases").
				WithArgs(int64(1), int64(3), "tok-1", 39.0, tt.evidence)
			if tt.mockError != nil {
				expect.WillReturnError(tt.mockError)
			} else {
				expect.WillReturnRows(sqlmock.NewRows(purchaseRowColumns).
					AddRow(100, 1, 3, "tok-1", 39.0, tt.evidence, time.Now()))
			}

			p, err := repo.Create(context.Background(), &domain.Purchase{
				UserID:       1,
				CardID:       3,
				Token:        "tok-1",
				Amount:       39.0,
				EvidencePath: tt.evidence,
			})
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, p)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, int64(100), p.ID)
				assert.Equal(t, "tok-1", p.Token)
				assert.Equal(t, 39.0, p.Amount)
				assert.Equal(t, tt.evidence, p.EvidencePath)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPurchaseRepo_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPurchaseRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows(purchaseRowColumns).
		AddRow(2, 1, 4, "tok-b", 20.0, "", now).
		AddRow(1, 1, 3, "tok-a", 10.0, "", now.Add(-time.Hour))

	mock.ExpectQuery("FROM purchases WHERE user_id = \\$1 ORDER BY created_at DESC, id DESC").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	purchases, err := repo.ListByUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, purchases, 2)
	assert.Equal(t, "tok-b", purchases[0].Token)
	assert.Equal(t, "tok-a", purchases[1].Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_SumByUser(t *testing.T) {
	tests := []struct {
		name     string
		mockRows *sqlmock.Rows
		expected float64
	}{
		{
			name:     "has purchases",
			mockRows: sqlmock.NewRows([]string{"sum"}).AddRow(49.5),
			expected: 49.5,
		},
		{
			name:     "no purchases",
			mockRows: sqlmock.NewRows([]string{"sum"}).AddRow(0.0),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer db.Close()

			repo := NewPurchaseRepo(db)

			mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM purchases WHERE user_id = \\$1").
				WithArgs(int64(1)).
				WillReturnRows(tt.mockRows)

			total, err := repo.SumByUser(context.Background(), 1)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, total)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPurchaseRepo_CountByShop(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPurchaseRepo(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM purchases p JOIN cards c").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByShop(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_Leaderboard(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPurchaseRepo(db)

	rows := sqlmock.NewRows([]string{"telegram_id", "total"}).
		AddRow(200, 50.0).
		AddRow(300, 20.0).
		AddRow(100, 10.0)

	mock.ExpectQuery("GROUP BY u.telegram_id ORDER BY total DESC, u.telegram_id LIMIT \\$1").
		WithArgs(10).
		WillReturnRows(rows)

	entries, err := repo.Leaderboard(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardEntry{
		{TelegramID: 200, TotalSpent: 50},
		{TelegramID: 300, TotalSpent: 20},
		{TelegramID: 100, TotalSpent: 10},
	}, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_Leaderboard_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPurchaseRepo(db)

	mock.ExpectQuery("SELECT u.telegram_id").WillReturnError(fmt.Errorf("query error"))

	entries, err := repo.Leaderboard(context.Background(), 10)
	assert.Error(t, err)
	assert.Nil(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_SalesByShop(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPurchaseRepo(db)

	rows := sqlmock.NewRows([]string{"id", "name", "sold"}).
		AddRow(2, "busy_bot", 5).
		AddRow(1, "quiet_bot", 0)

	mock.ExpectQuery("FROM shops s LEFT JOIN cards c").WillReturnRows(rows)

	sales, err := repo.SalesByShop(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []domain.ShopSales{
		{ShopID: 2, ShopName: "busy_bot", Purchases: 5},
		{ShopID: 1, ShopName: "quiet_bot", Purchases: 0},
	}, sales)
	assert.NoError(t, mock.ExpectationsWereMet())
}
