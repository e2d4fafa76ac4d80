package httpapi

import (
	"time"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/internal/settlement"
)

// apiError é o envelope de erro padrão. Os campos current_* só aparecem
// quando a rejeição carrega uma contraproposta (odds_changed, offer_changed).
type apiError struct {
	Error             string   `json:"error"`
	Code              string   `json:"code,omitempty"`
	CurrentOdds       *int     `json:"current_odds,omitempty"`
	CurrentLine       *float64 `json:"current_line,omitempty"`
	CurrentOfferCents *int64   `json:"current_offer_cents,omitempty"`
}

type placeBetRequest struct {
	UserID            string  `json:"user_id"`
	GameID            string  `json:"game_id"`
	Market            string  `json:"market"`
	Selection         string  `json:"selection"`
	Line              float64 `json:"line"`
	Odds              int     `json:"odds"`
	StakeCents        int64   `json:"stake_cents"`
	AcceptOddsChanges bool    `json:"accept_odds_changes"`
}

type acceptCashOutRequest struct {
	OfferCents int64 `json:"offer_cents"`
}

type betResponse struct {
	BetID             string     `json:"bet_id"`
	UserID            string     `json:"user_id"`
	GameID            string     `json:"game_id"`
	Sport             string     `json:"sport,omitempty"`
	Market            string     `json:"market"`
	Selection         string     `json:"selection"`
	Line              float64    `json:"line,omitempty"`
	Odds              int        `json:"odds"`
	StakeCents        int64      `json:"stake_cents"`
	PotentialWinCents int64      `json:"potential_win_cents"`
	Status            string     `json:"status"`
	PlacedAt          time.Time  `json:"placed_at"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
	ResultAmountCents *int64     `json:"result_amount_cents,omitempty"`
	CashedOutCents    *int64     `json:"cashed_out_cents,omitempty"`
}

// toBetResponse converte a aposta persistida para o formato de transporte.
// Campos de liquidação só são expostos depois que a aposta sai de ACTIVE.
func toBetResponse(b *betstore.Bet) betResponse {
	resp := betResponse{
		BetID:             b.ID,
		UserID:            b.UserID,
		GameID:            b.GameID,
		Sport:             b.Sport,
		Market:            string(b.Market),
		Selection:         string(b.Selection),
		Line:              b.Line,
		Odds:              b.OriginalOdds,
		StakeCents:        b.StakeCents,
		PotentialWinCents: b.PotentialWinCents,
		Status:            string(b.Status),
		PlacedAt:          b.PlacedAt,
	}
	if b.Status.Terminal() {
		if !b.SettledAt.IsZero() {
			t := b.SettledAt
			resp.SettledAt = &t
		}
		if b.Status == betstore.StatusCashedOut {
			v := b.CashedOutCents
			resp.CashedOutCents = &v
		} else {
			v := b.ResultAmountCents
			resp.ResultAmountCents = &v
		}
	}
	return resp
}

type schedulerPatchRequest struct {
	IntervalSeconds      *int    `json:"interval_seconds"`
	MaxRetries           *int    `json:"max_retries"`
	RetryBackoffSeconds  *int    `json:"retry_backoff_seconds"`
	MaxConsecutiveErrors *int    `json:"max_consecutive_errors"`
	QuietHours           *string `json:"quiet_hours"`
	Enabled              *bool   `json:"enabled"`
}

type schedulerResponse struct {
	State                string     `json:"state"`
	Enabled              bool       `json:"enabled"`
	IntervalSeconds      int        `json:"interval_seconds"`
	MaxRetries           int        `json:"max_retries"`
	RetryBackoffSeconds  int        `json:"retry_backoff_seconds"`
	MaxConsecutiveErrors int        `json:"max_consecutive_errors"`
	QuietHours           string     `json:"quiet_hours,omitempty"`
	LastRunAt            *time.Time `json:"last_run_at,omitempty"`
	NextRunAt            *time.Time `json:"next_run_at,omitempty"`
	LastError            string     `json:"last_error,omitempty"`
	ConsecutiveErrors    int        `json:"consecutive_errors"`
	TotalRuns            int64      `json:"total_runs"`
	SuccessfulRuns       int64      `json:"successful_runs"`
	FailedRuns           int64      `json:"failed_runs"`
	BetsVerified         int64      `json:"bets_verified"`
	BetsSettled          int64      `json:"bets_settled"`
}

func toSchedulerResponse(stats settlement.Stats, cfg settlement.Config) schedulerResponse {
	resp := schedulerResponse{
		State:                string(stats.State),
		Enabled:              stats.Enabled,
		IntervalSeconds:      int(cfg.Interval / time.Second),
		MaxRetries:           cfg.MaxRetries,
		RetryBackoffSeconds:  int(cfg.RetryBackoffBase / time.Second),
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		QuietHours:           cfg.Quiet.String(),
		LastError:            stats.LastError,
		ConsecutiveErrors:    stats.ConsecutiveErrors,
		TotalRuns:            stats.TotalRuns,
		SuccessfulRuns:       stats.SuccessfulRuns,
		FailedRuns:           stats.FailedRuns,
		BetsVerified:         stats.BetsVerified,
		BetsSettled:          stats.BetsSettled,
	}
	if !stats.LastRunAt.IsZero() {
		t := stats.LastRunAt
		resp.LastRunAt = &t
	}
	if !stats.NextRunAt.IsZero() {
		t := stats.NextRunAt
		resp.NextRunAt = &t
	}
	return resp
}

// toMarketSnapshot mantém a resposta de mercados estável mesmo que o tipo
// interno ganhe campos novos.
func toMarketSnapshots(snaps []marketstore.Snapshot) []marketstore.Snapshot {
	if snaps == nil {
		return []marketstore.Snapshot{}
	}
	return snaps
}
