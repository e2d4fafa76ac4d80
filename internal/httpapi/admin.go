package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/settlement"
)

// runVerification dispara um ciclo de verificação imediato, fora do agendador.
// A execução roda mesmo dentro da janela de silêncio; só é recusada se já
// houver uma em andamento ou se o circuito estiver desarmado.
func (a *API) runVerification(w http.ResponseWriter, r *http.Request) {
	err := a.Scheduler.RunNow(r.Context())
	switch {
	case errors.Is(err, settlement.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "run_in_progress"})
		return
	case errors.Is(err, settlement.ErrTaskDisabled):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "task_disabled"})
		return
	case err != nil:
		// A execução rodou e falhou; o estado retornado carrega o erro.
		a.Log.Warn("manual verification run failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, a.schedulerState())
}

// getScheduler retorna a configuração e as estatísticas do verificador.
func (a *API) getScheduler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.schedulerState())
}

// updateScheduler aplica um patch parcial na configuração do verificador.
// Campos ausentes ficam como estão; enabled rearma ou desarma o circuito.
func (a *API) updateScheduler(w http.ResponseWriter, r *http.Request) {
	var req schedulerPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "invalid_request"})
		return
	}

	var upd settlement.ConfigUpdate
	if req.IntervalSeconds != nil {
		d := time.Duration(*req.IntervalSeconds) * time.Second
		upd.Interval = &d
	}
	if req.MaxRetries != nil {
		upd.MaxRetries = req.MaxRetries
	}
	if req.RetryBackoffSeconds != nil {
		d := time.Duration(*req.RetryBackoffSeconds) * time.Second
		upd.RetryBackoffBase = &d
	}
	if req.MaxConsecutiveErrors != nil {
		upd.MaxConsecutiveErrors = req.MaxConsecutiveErrors
	}
	if req.QuietHours != nil {
		quiet, err := settlement.ParseQuietWindow(*req.QuietHours)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error(), Code: "invalid_request"})
			return
		}
		upd.Quiet = &quiet
	}

	if _, err := a.Scheduler.UpdateConfig(upd); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error(), Code: "invalid_request"})
		return
	}
	if req.Enabled != nil {
		if *req.Enabled {
			a.Scheduler.Enable()
		} else {
			a.Scheduler.Disable()
		}
	}
	writeJSON(w, http.StatusOK, a.schedulerState())
}

func (a *API) schedulerState() schedulerResponse {
	return toSchedulerResponse(a.Scheduler.Stats(), a.Scheduler.Config())
}
