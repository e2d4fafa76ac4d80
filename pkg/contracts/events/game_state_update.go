package events

import "time"

// GameStateUpdate é publicado no tópico "game_state_updates" a cada mudança
// de estado de jogo.
type GameStateUpdate struct {
	GameID    string    `json:"game_id"`
	Sport     string    `json:"sport,omitempty"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	Status    string    `json:"status"`
	Period    int       `json:"period,omitempty"`
	Clock     string    `json:"clock,omitempty"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	LastPlay  string    `json:"last_play,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
