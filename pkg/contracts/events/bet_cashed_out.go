package events

// BetCashedOut é emitido quando o usuário aceita uma oferta de cash-out
// numa aposta ativa.
type BetCashedOut struct {
	BetID       string `json:"bet_id"`
	UserID      string `json:"user_id"`
	GameID      string `json:"game_id"`
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
