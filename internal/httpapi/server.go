// Package httpapi expõe a API REST do motor: mercados ao vivo, apostas,
// cash-out, administração do verificador e o endpoint WebSocket.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/broadcast"
	"github.com/radieske/live-settlement-engine/internal/cashout"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/internal/placement"
	"github.com/radieske/live-settlement-engine/internal/settlement"
)

// API agrega as dependências dos handlers.
type API struct {
	Log       *zap.Logger
	Markets   *marketstore.Store
	Bets      betstore.Store
	Placement *placement.Coordinator
	CashOut   *cashout.Service
	Scheduler *settlement.Reconciler
	Hub       *broadcast.Hub
}

// Router retorna o roteador HTTP com todos os endpoints.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/v1/markets", a.listMarkets)
	r.Get("/v1/markets/{gameID}", a.getMarket)

	r.Post("/v1/bets", a.placeBet)
	r.Get("/v1/bets/{id}", a.getBet)
	r.Post("/v1/bets/{id}/cashout/quote", a.quoteCashOut)
	r.Post("/v1/bets/{id}/cashout", a.acceptCashOut)

	r.Post("/v1/admin/verification/run", a.runVerification)
	r.Get("/v1/admin/scheduler", a.getScheduler)
	r.Patch("/v1/admin/scheduler", a.updateScheduler)

	if a.Hub != nil {
		r.Get("/ws", a.Hub.HandleWS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
