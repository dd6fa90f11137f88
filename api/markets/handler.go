// Package markets exposes a read-only HTTP view of a solved marketplace.
//
// The handlers read market state directly, so the router must only be served
// once the solver has stopped writing to the marketplace.
package markets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
	"github.com/SebastianAlessandro/gcam-core/core/market"
	"github.com/SebastianAlessandro/gcam-core/core/marketplace"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

// Source is the part of the marketplace the API reads.
type Source interface {
	Periods() int
	Markets(period int) []*market.Market
	MarketByName(name string, period int) (*market.Market, error)
}

// Results returns the period results solved so far.
type Results func() []solver.Result

// PricePoint is one entry of a market's price history.
type PricePoint struct {
	Period int          `json:"period"`
	Price  float64      `json:"price"`
	Demand float64      `json:"demand"`
	Supply float64      `json:"supply"`
	State  market.State `json:"state"`
}

type handler struct {
	src     Source
	results Results
	log     logger.Logger
}

// NewRouter returns the inspection API:
//
//	GET /health
//	GET /api/markets?period=N
//	GET /api/markets/{name}?period=N
//	GET /api/markets/{name}/history
//	GET /api/periods
//	GET /api/periods/{period}
//
// period defaults to the last period of the run.
func NewRouter(src Source, results Results, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop{}
	}
	if results == nil {
		results = func() []solver.Result { return nil }
	}
	h := &handler{src: src, results: results, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/markets", h.listMarkets)
		r.Get("/markets/{name}", h.getMarket)
		r.Get("/markets/{name}/history", h.history)
		r.Get("/periods", h.listPeriods)
		r.Get("/periods/{period}", h.getPeriod)
	})
	return r
}

func (h *handler) period(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return h.src.Periods() - 1, true
	}
	p, err := strconv.Atoi(raw)
	if err != nil || p < 0 || p >= h.src.Periods() {
		return 0, false
	}
	return p, true
}

func (h *handler) listMarkets(w http.ResponseWriter, r *http.Request) {
	period, ok := h.period(r)
	if !ok {
		writeError(w, "invalid period", http.StatusBadRequest)
		return
	}
	ms := h.src.Markets(period)
	out := make([]solver.MarketResult, 0, len(ms))
	for _, m := range ms {
		out = append(out, solver.Snapshot(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getMarket(w http.ResponseWriter, r *http.Request) {
	period, ok := h.period(r)
	if !ok {
		writeError(w, "invalid period", http.StatusBadRequest)
		return
	}
	m, err := h.src.MarketByName(chi.URLParam(r, "name"), period)
	if err != nil {
		h.lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, solver.Snapshot(m))
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	out := make([]PricePoint, 0, h.src.Periods())
	for p := 0; p < h.src.Periods(); p++ {
		m, err := h.src.MarketByName(name, p)
		if err != nil {
			h.lookupError(w, err)
			return
		}
		out = append(out, PricePoint{Period: p, Price: m.Price(), Demand: m.Demand(), Supply: m.Supply(), State: m.State()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listPeriods(w http.ResponseWriter, _ *http.Request) {
	res := h.results()
	if res == nil {
		res = []solver.Result{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := strconv.Atoi(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, "invalid period", http.StatusBadRequest)
		return
	}
	for _, res := range h.results() {
		if res.Period == period {
			writeJSON(w, http.StatusOK, res)
			return
		}
	}
	writeError(w, "period not solved", http.StatusNotFound)
}

func (h *handler) lookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketplace.ErrMarketNotFound):
		writeError(w, "market not found", http.StatusNotFound)
	case errors.Is(err, marketplace.ErrPeriodOutOfRange):
		writeError(w, "invalid period", http.StatusBadRequest)
	default:
		h.log.Errorf("market lookup: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
