// Package dashboard serves the admin views over HTTP.
package dashboard

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cardshop/internal/domain"
	"cardshop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultLeaderboardLimit = 10

// Router exposes the admin service as JSON
type Router struct {
	admin  *service.AdminService
	token  string
	logger *zap.Logger
}

// NewRouter builds the dashboard handler. Every route except /health requires the bearer token.
func NewRouter(admin *service.AdminService, token string, logger *zap.Logger) http.Handler {
	r := &Router{admin: admin, token: token, logger: logger}
	mux := chi.NewRouter()

	mux.Get("/health", r.handleHealth)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.authMiddleware)
		pr.Get("/admin/shops", r.handleShops)
		pr.Get("/admin/purchases", r.handlePurchases)
		pr.Get("/admin/sales", r.handleSales)
		pr.Get("/leaderboard", r.handleLeaderboard)
	})

	return mux
}

func (r *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		authz := req.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(authz, "Bearer ")
		if r.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(r.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type shopView struct {
	ID         int64  `json:"id"`
	OwnerID    int64  `json:"owner_id"`
	Name       string `json:"name"`
	FullAccess bool   `json:"full_access"`
	CreatedAt  string `json:"created_at"`
}

func (r *Router) handleShops(w http.ResponseWriter, req *http.Request) {
	shops, err := r.admin.ListShops(req.Context())
	if err != nil {
		r.internalError(w, "list shops", err)
		return
	}

	out := make([]shopView, 0, len(shops))
	for _, s := range shops {
		out = append(out, shopView{
			ID:         s.ID,
			OwnerID:    s.OwnerID,
			Name:       s.Name,
			FullAccess: s.FullAccess,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type purchaseView struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	CardID    int64   `json:"card_id"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type purchasePage struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Purchases  []purchaseView `json:"purchases"`
}

func (r *Router) handlePurchases(w http.ResponseWriter, req *http.Request) {
	page := 1
	if v := req.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page must be a positive integer"})
			return
		}
		page = n
	}

	purchases, totalPages, err := r.admin.PurchasesPage(req.Context(), page)
	if err != nil {
		r.internalError(w, "list purchases", err)
		return
	}
	if page > totalPages {
		page = totalPages
	}

	out := purchasePage{Page: page, TotalPages: totalPages, Purchases: make([]purchaseView, 0, len(purchases))}
	for _, p := range purchases {
		out.Purchases = append(out.Purchases, purchaseView{
			ID:        p.ID,
			UserID:    p.UserID,
			CardID:    p.CardID,
			Token:     p.Token,
			Amount:    p.Amount,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleSales(w http.ResponseWriter, req *http.Request) {
	sales, err := r.admin.SalesByShop(req.Context())
	if err != nil {
		r.internalError(w, "sales by shop", err)
		return
	}
	if sales == nil {
		sales = []domain.ShopSales{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (r *Router) handleLeaderboard(w http.ResponseWriter, req *http.Request) {
	limit := defaultLeaderboardLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := r.admin.Leaderboard(req.Context(), limit)
	if err != nil {
		r.internalError(w, "leaderboard", err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) internalError(w http.ResponseWriter, op string, err error) {
	r.logger.Error("Dashboard request failed", zap.String("op", op), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
