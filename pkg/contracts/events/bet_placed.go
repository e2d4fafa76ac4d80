package events

type BetPlaced struct {
	BetID             string  `json:"bet_id"`
	UserID            string  `json:"user_id"`
	GameID            string  `json:"game_id"`
	Market            string  `json:"market"`
	Selection         string  `json:"selection"`
	Line              float64 `json:"line,omitempty"`
	Odds              int     `json:"odds"`
	StakeCents        int64   `json:"stake_cents"`
	PotentialWinCents int64   `json:"potential_win_cents"`
	TsUnixMs          int64   `json:"ts_unix_ms"`
}
