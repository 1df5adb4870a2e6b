// Package httpapi 提供只读的管理接口：健康检查、Prometheus 指标和即将到期的域名。
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"DomainWatch/domain"
	"DomainWatch/metrics"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ExpiringLister interface {
	ListExpiring(ctx context.Context, days int) ([]domain.Record, error)
}

type Handler struct {
	DB        Pinger
	Domains   ExpiringLister
	AlertDays int
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// domainJSON 是接口对外的域名格式，日期为 YYYY-MM-DD。
type domainJSON struct {
	Name             string         `json:"name"`
	NameServers      string         `json:"nameservers,omitempty"`
	RegistrationDate domain.Date    `json:"registration_date"`
	ExpirationDate   domain.Date    `json:"expiration_date"`
	DaysLeft         int            `json:"days_left"`
	Status           string         `json:"status,omitempty"`
	LastUpdate       time.Time      `json:"last_update"`
	Extra            map[string]any `json:"extra,omitempty"`
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/domains/expiring", h.handleExpiring)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			h.logger().Warn("healthz_db_failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleExpiring(w http.ResponseWriter, r *http.Request) {
	days := h.AlertDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a non-negative integer"})
			return
		}
		days = n
	}
	if h.Domains == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage not configured"})
		return
	}

	records, err := h.Domains.ListExpiring(r.Context(), days)
	if err != nil {
		h.logger().Error("api_list_expiring_failed", zap.Int("days", days), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}

	today := domain.Today()
	out := make([]domainJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, domainJSON{
			Name:             rec.Name,
			NameServers:      rec.NameServers,
			RegistrationDate: rec.RegistrationDate,
			ExpirationDate:   rec.ExpirationDate,
			DaysLeft:         rec.DaysLeft(today),
			Status:           rec.Status,
			LastUpdate:       rec.LastUpdate.UTC(),
			Extra:            rec.Extra,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "domains": out})
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
