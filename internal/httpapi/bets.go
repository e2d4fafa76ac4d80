package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/cashout"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/internal/placement"
)

// placeBet registra uma aposta ao vivo. Rejeições de preço retornam 409 com
// a cotação corrente para o cliente reapresentar.
func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "invalid_request"})
		return
	}

	bet, err := a.Placement.PlaceBet(r.Context(), placement.PlaceRequest{
		UserID:            req.UserID,
		GameID:            req.GameID,
		Market:            marketstore.Market(req.Market),
		Selection:         marketstore.Selection(req.Selection),
		Line:              req.Line,
		Odds:              req.Odds,
		StakeCents:        req.StakeCents,
		AcceptOddsChanges: req.AcceptOddsChanges,
	})
	if err != nil {
		a.writePlacementError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetResponse(bet))
}

// writePlacementError traduz as falhas tipadas do coordenador em status HTTP.
func (a *API) writePlacementError(w http.ResponseWriter, err error) {
	code := placement.RejectCode(err)

	var oddsChanged *placement.OddsChangedError
	switch {
	case errors.As(err, &oddsChanged):
		writeJSON(w, http.StatusConflict, apiError{
			Error:       oddsChanged.Error(),
			Code:        code,
			CurrentOdds: &oddsChanged.CurrentOdds,
			CurrentLine: &oddsChanged.CurrentLine,
		})
	case errors.Is(err, placement.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error(), Code: code})
	case errors.Is(err, placement.ErrGameNotLive):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error(), Code: code})
	case errors.Is(err, placement.ErrMarketSuspended), errors.Is(err, placement.ErrQuoteStale):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: code})
	default:
		a.Log.Error("place bet failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error", Code: code})
	}
}

// getBet retorna uma aposta pelo ID.
func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bet, err := a.Bets.GetBet(r.Context(), id)
	if err != nil {
		if errors.Is(err, betstore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "bet not found", Code: "bet_not_found"})
			return
		}
		a.Log.Error("get bet failed", zap.String("bet_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

// quoteCashOut precifica o encerramento antecipado de uma aposta ativa.
func (a *API) quoteCashOut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	offer, err := a.CashOut.QuoteBet(r.Context(), id)
	if err != nil {
		a.writeCashOutError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// acceptCashOut executa o cash-out pelo valor apresentado ao usuário. Se a
// oferta corrente derivou além da tolerância, retorna 409 com o valor novo.
func (a *API) acceptCashOut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req acceptCashOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "invalid_request"})
		return
	}
	if req.OfferCents <= 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "offer_cents must be positive", Code: "invalid_request"})
		return
	}

	bet, err := a.CashOut.Accept(r.Context(), id, req.OfferCents)
	if err != nil {
		a.writeCashOutError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

func (a *API) writeCashOutError(w http.ResponseWriter, betID string, err error) {
	var changed *cashout.OfferChangedError
	switch {
	case errors.As(err, &changed):
		writeJSON(w, http.StatusConflict, apiError{
			Error:             changed.Error(),
			Code:              "offer_changed",
			CurrentOfferCents: &changed.Current.OfferCents,
		})
	case errors.Is(err, betstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "bet not found", Code: "bet_not_found"})
	case errors.Is(err, cashout.ErrUnavailable):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "cashout_unavailable"})
	case errors.Is(err, betstore.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, apiError{Error: "bet already settled", Code: "status_conflict"})
	default:
		a.Log.Error("cash-out failed", zap.String("bet_id", betID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
	}
}
