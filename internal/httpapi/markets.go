package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// listMarkets retorna todos os jogos ao vivo com suas cotações correntes.
func (a *API) listMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMarketSnapshots(a.Markets.LiveSnapshots()))
}

// getMarket retorna o snapshot de um jogo, ao vivo ou não.
func (a *API) getMarket(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	snap, ok := a.Markets.Snapshot(gameID)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "game not tracked", Code: "game_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
