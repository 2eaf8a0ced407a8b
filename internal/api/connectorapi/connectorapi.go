package connectorapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nabezky/VoucherBox/internal/cache/rediscache"
	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/nabezky/VoucherBox/internal/render"
	"github.com/nabezky/VoucherBox/internal/services/diagnostics"
	"github.com/nabezky/VoucherBox/internal/vouchercode"
)

type Storage interface {
	GetOrder(ctx context.Context, orderID int64) (*models.VoucherOrder, error)
}

type Cache interface {
	GetVoucherData(ctx context.Context, orderID int64) (*models.VoucherData, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type DiagnosticsRunner interface {
	Run(ctx context.Context, cfg diagnostics.Config) diagnostics.Result
}

// Opts wires the API handlers.
type Opts struct {
	Store    Storage
	Cache    Cache
	RL       RateLimiter
	Renderer *render.Renderer
	Diag     DiagnosticsRunner
	DiagCfg  diagnostics.Config
	Log      *slog.Logger

	AdminToken         string
	MapURL             string
	PollWindow         time.Duration
	RateLimitPerMinute int64
}

type API struct {
	opts Opts
	now  func() time.Time
}

func New(opts Opts) *API {
	if opts.PollWindow <= 0 {
		opts.PollWindow = 120 * time.Second
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 30
	}
	return &API{opts: opts, now: time.Now}
}

// Register mounts all connector routes on the router.
func (a *API) Register(r chi.Router) {
	r.Post("/admin/test-connection", a.handleTestConnection)
	r.Get("/orders/{orderID}/voucher-status", a.handleVoucherStatus)
	r.Get("/orders/{orderID}/vouchers", a.handleVoucherInfo)
	r.Get("/map-link", a.handleMapLink)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if a.opts.AdminToken == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "admin token not configured"})
		return
	}
	got := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.opts.AdminToken)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid admin token"})
		return
	}

	res := a.opts.Diag.Run(r.Context(), a.opts.DiagCfg)
	writeJSON(w, http.StatusOK, res)
}

func (a *API) orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	return id, err == nil && id > 0
}

// handleVoucherStatus обслуживает поллинг со страницы подтверждения.
// Ответ ровно один из трёх: данные с html, processing или timeout.
func (a *API) handleVoucherStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := a.orderID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	ctx := r.Context()

	if a.opts.RL != nil {
		allowed, _, err := a.opts.RL.Allow(ctx, rediscache.PollKey(orderID), a.opts.RateLimitPerMinute, time.Minute)
		if err == nil && !allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
	}

	// сначала кеш, постгрес только на промахе
	if a.opts.Cache != nil {
		if data, err := a.opts.Cache.GetVoucherData(ctx, orderID); err == nil && data != nil {
			a.respondVoucherData(w, *data)
			return
		}
	}

	o, err := a.opts.Store.GetOrder(ctx, orderID)
	if err != nil {
		a.opts.Log.Error("voucher status read", "order_id", orderID, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	if o == nil {
		// событие заказа могло ещё не дойти
		writeJSON(w, http.StatusOK, map[string]bool{"processing": true})
		return
	}
	if o.VoucherData != nil {
		var data models.VoucherData
		if err := json.Unmarshal([]byte(*o.VoucherData), &data); err != nil {
			a.opts.Log.Error("stored voucher data unreadable", "order_id", orderID, "error", err.Error())
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "voucher data unreadable"})
			return
		}
		a.respondVoucherData(w, data)
		return
	}
	if a.now().Sub(o.ProcessedAt) > a.opts.PollWindow {
		writeJSON(w, http.StatusOK, map[string]bool{"timeout": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"processing": true})
}

func (a *API) respondVoucherData(w http.ResponseWriter, data models.VoucherData) {
	html, err := a.opts.Renderer.VoucherFragment(data)
	if err != nil {
		a.opts.Log.Error("render voucher fragment", "error", err.Error())
		html = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"voucher_data": data,
		"html":         html,
	})
}

func (a *API) handleVoucherInfo(w http.ResponseWriter, r *http.Request) {
	orderID, ok := a.orderID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	o, err := a.opts.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	if o == nil || o.VoucherData == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var data models.VoucherData
	if err := json.Unmarshal([]byte(*o.VoucherData), &data); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "voucher data unreadable"})
		return
	}
	html, err := a.opts.Renderer.VoucherFragment(data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "render failed"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (a *API) handleMapLink(w http.ResponseWriter, r *http.Request) {
	voucher := r.URL.Query().Get("voucher")
	email := r.URL.Query().Get("email")
	if !vouchercode.IsValidFormat(voucher) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "voucher code must be exactly 12 digits"})
		return
	}

	u, err := vouchercode.MapAccessURL(a.opts.MapURL, voucher, email, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "map url misconfigured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}
