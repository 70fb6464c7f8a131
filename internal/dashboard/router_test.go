package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cardshop/internal/domain"
	"cardshop/internal/service"
	"cardshop/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

func newTestServer(t *testing.T) (http.Handler, *testutil.MockShopRepository, *testutil.MockPurchaseRepository) {
	t.Helper()
	shops := new(testutil.MockShopRepository)
	purchases := new(testutil.MockPurchaseRepository)
	admin := service.NewAdminService(shops, purchases, testutil.NewTestLogger())
	return NewRouter(admin, testToken, testutil.NewTestLogger()), shops, purchases
}

func doGet(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestServer(t)
	rr := doGet(t, h, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAuth(t *testing.T) {
	h, _, _ := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		token string
	}{
		{name: "missing token", path: "/admin/shops"},
		{name: "wrong token", path: "/admin/shops", token: "guess"},
		{name: "leaderboard is protected", path: "/leaderboard"},
		{name: "purchases are protected", path: "/admin/purchases", token: "s3cret!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doGet(t, h, tt.path, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAuth_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	admin := service.NewAdminService(new(testutil.MockShopRepository), new(testutil.MockPurchaseRepository), testutil.NewTestLogger())
	h := NewRouter(admin, "", testutil.NewTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/shops", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLeaderboard(t *testing.T) {
	h, _, purchases := newTestServer(t)
	purchases.On("Leaderboard", mock.Anything, 10).Return([]domain.LeaderboardEntry{
		{TelegramID: 200, TotalSpent: 50},
		{TelegramID: 300, TotalSpent: 20},
		{TelegramID: 100, TotalSpent: 10},
	}, nil)

	rr := doGet(t, h, "/leaderboard", testToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"user_id":200,"total_spent":50},
		{"user_id":300,"total_spent":20},
		{"user_id":100,"total_spent":10}
	]`, rr.Body.String())
}

func TestLeaderboard_Limit(t *testing.T) {
	h, _, purchases := newTestServer(t)
	purchases.On("Leaderboard", mock.Anything, 3).Return([]domain.LeaderboardEntry(nil), nil)

	rr := doGet(t, h, "/leaderboard?limit=3", testToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = doGet(t, h, "/leaderboard?limit=zero", testToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestShops(t *testing.T) {
	h, shops, _ := newTestServer(t)
	shop := testutil.NewTestShop(7, 1, "Cards")
	shop.CreatedAt = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	shops.On("List", mock.Anything).Return([]domain.Shop{*shop}, nil)

	rr := doGet(t, h, "/admin/shops", testToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":7,"owner_id":1,"name":"Cards","full_access":true,"created_at":"2024-05-01T10:30:00Z"}]`, rr.Body.String())
}

func TestShops_Error(t *testing.T) {
	h, shops, _ := newTestServer(t)
	shops.On("List", mock.Anything).Return(nil, errors.New("connection refused"))

	rr := doGet(t, h, "/admin/shops", testToken)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestPurchases(t *testing.T) {
	h, _, purchases := newTestServer(t)

	all := make([]domain.Purchase, 0, 12)
	for i := 1; i <= 12; i++ {
		all = append(all, domain.Purchase{ID: int64(i), UserID: 1, CardID: 3, Token: "t", Amount: 1})
	}
	purchases.On("List", mock.Anything).Return(all, nil)

	tests := []struct {
		name      string
		path      string
		code      int
		page      int
		purchases int
	}{
		{name: "first page", path: "/admin/purchases", code: http.StatusOK, page: 1, purchases: 10},
		{name: "second page", path: "/admin/purchases?page=2", code: http.StatusOK, page: 2, purchases: 2},
		{name: "past the end", path: "/admin/purchases?page=9", code: http.StatusOK, page: 2, purchases: 2},
		{name: "bad page", path: "/admin/purchases?page=-1", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doGet(t, h, tt.path, testToken)
			require.Equal(t, tt.code, rr.Code)
			if tt.code != http.StatusOK {
				return
			}

			var body purchasePage
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.page, body.Page)
			assert.Equal(t, 2, body.TotalPages)
			assert.Len(t, body.Purchases, tt.purchases)
		})
	}
}

func TestSales(t *testing.T) {
	h, _, purchases := newTestServer(t)
	purchases.On("SalesByShop", mock.Anything).Return([]domain.ShopSales{
		{ShopID: 7, ShopName: "Cards", Purchases: 3},
	}, nil)

	rr := doGet(t, h, "/admin/sales", testToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"shop_id":7,"shop_name":"Cards","purchases":3}]`, rr.Body.String())
}
