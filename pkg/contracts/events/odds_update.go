package events

import "time"

// OddsUpdate é publicado no tópico "odds_updates" sempre que a cotação de um
// mercado muda.
type OddsUpdate struct {
	GameID        string    `json:"game_id"`
	Market        string    `json:"market"` // "moneyline" | "spread" | "total"
	HomePrice     int       `json:"home_price,omitempty"`
	AwayPrice     int       `json:"away_price,omitempty"`
	OverPrice     int       `json:"over_price,omitempty"`
	UnderPrice    int       `json:"under_price,omitempty"`
	Line          float64   `json:"line,omitempty"`
	Suspended     bool      `json:"suspended"`
	SuspendReason string    `json:"suspend_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
