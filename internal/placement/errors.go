package placement

import (
	"errors"
	"fmt"
)

// Falhas de colocação são tipadas para a camada de API mapear cada uma em
// status e código legível por máquina, e para as métricas contá-las por
// motivo.
var (
	ErrGameNotLive     = errors.New("game is not live")
	ErrMarketSuspended = errors.New("market is suspended")
	ErrQuoteStale      = errors.New("quote is stale")
	ErrInvalidRequest  = errors.New("invalid bet request")
)

// OddsChangedError rejeita uma aposta precificada contra odds que se
// moveram além da tolerância. Carrega o preço atual para quem chamou poder
// reofertar.
type OddsChangedError struct {
	ClientOdds  int
	CurrentOdds int
	CurrentLine float64
}

func (e *OddsChangedError) Error() string {
	return fmt.Sprintf("odds changed: client saw %+d, current %+d (line %.1f)",
		e.ClientOdds, e.CurrentOdds, e.CurrentLine)
}

// RejectCode classifica um erro de colocação em um código de motivo
// estável.
func RejectCode(err error) string {
	var oc *OddsChangedError
	switch {
	case errors.As(err, &oc):
		return "odds_changed"
	case errors.Is(err, ErrGameNotLive):
		return "game_not_live"
	case errors.Is(err, ErrMarketSuspended):
		return "market_suspended"
	case errors.Is(err, ErrQuoteStale):
		return "quote_stale"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}
