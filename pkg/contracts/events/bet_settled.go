package events

// BetSettled é emitido pelo verificador quando a aposta chega num resultado
// terminal.
type BetSettled struct {
	BetID             string `json:"bet_id"`
	UserID            string `json:"user_id"`
	GameID            string `json:"game_id"`
	Result            string `json:"result"` // "won" | "lost" | "pushed" | "void"
	ResultAmountCents int64  `json:"result_amount_cents"`
	TsUnixMs          int64  `json:"ts_unix_ms"`
}
