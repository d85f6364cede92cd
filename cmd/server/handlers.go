package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"priceoracle/internal/aggregate"
)

const maxSymbols = 1000

// prices is the read API the handlers serve.
type prices interface {
	GetPrices(ctx context.Context) aggregate.Table
	GetPrice(ctx context.Context, symbol string) (aggregate.Quote, bool)
	Resolve(t aggregate.Table, symbol string) (aggregate.Quote, bool)
	RefreshPrices(ctx context.Context) aggregate.Table
	Peek() (aggregate.Table, bool)
}

type handlers struct {
	svc     prices
	timeout time.Duration
	log     *slog.Logger
}

type pricesResponse struct {
	Prices  aggregate.Table `json:"prices"`
	Missing []string        `json:"missing,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Cached bool   `json:"cached"`
	Quotes int    `json:"quotes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) routes(r *mux.Router, metrics http.Handler) {
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics).Methods(http.MethodGet)
	r.HandleFunc("/api/prices", h.getPrices).Methods(http.MethodGet)
	r.HandleFunc("/api/prices/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/prices/{symbol}", h.getPrice).Methods(http.MethodGet)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	t, ok := h.svc.Peek()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Cached: ok, Quotes: len(t.Canonical())})
}

// getPrices serves the whole table, or with ?symbols=a,b only the requested
// symbols resolved through aliases. ?canonical=true drops alias keys.
func (h *handlers) getPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	if raw := q.Get("symbols"); strings.TrimSpace(raw) != "" {
		symbols := splitCSV(raw)
		if len(symbols) > maxSymbols {
			writeError(w, http.StatusBadRequest, "too many symbols (max 1000)")
			return
		}
		snap := h.svc.GetPrices(ctx)
		resp := pricesResponse{Prices: aggregate.Table{}}
		for _, s := range symbols {
			if quote, ok := h.svc.Resolve(snap, s); ok {
				resp.Prices[s] = quote
			} else {
				resp.Missing = append(resp.Missing, s)
			}
		}
		sort.Strings(resp.Missing)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	t := h.svc.GetPrices(ctx)
	if q.Get("canonical") == "true" {
		t = t.Canonical()
	}
	writeJSON(w, http.StatusOK, pricesResponse{Prices: t})
}

func (h *handlers) getPrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	symbol := mux.Vars(r)["symbol"]
	quote, ok := h.svc.GetPrice(ctx, symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	t := h.svc.RefreshPrices(ctx)
	h.log.Info("manual refresh", "quotes", len(t), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, pricesResponse{Prices: t})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
