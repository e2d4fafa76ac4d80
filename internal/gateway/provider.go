package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Formatos de fio do provedor (layout v4 do the-odds-api). Eles nunca saem
// do gateway: tudo que está a jusante enxerga marketstore.Update.

type scoreEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []teamScore `json:"scores"`
	LastUpdate   *time.Time  `json:"last_update"`
}

type teamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

type oddsEvent struct {
	ID         string      `json:"id"`
	SportKey   string      `json:"sport_key"`
	HomeTeam   string      `json:"home_team"`
	AwayTeam   string      `json:"away_team"`
	Bookmakers []bookmaker `json:"bookmakers"`
}

type bookmaker struct {
	Key        string       `json:"key"`
	LastUpdate time.Time    `json:"last_update"`
	Markets    []marketOdds `json:"markets"`
}

type marketOdds struct {
	Key        string    `json:"key"` // h2h | spreads | totals
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []outcome `json:"outcomes"`
}

type outcome struct {
	Name  string   `json:"name"` // nome do time, ou "Over"/"Under"
	Price int      `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// feedFrame é uma mensagem do stream de placar ao vivo do provedor. Type
// seleciona qual grupo de campos tem significado.
type feedFrame struct {
	Type   string `json:"type"` // "game_state" | "odds"
	GameID string `json:"game_id"`
	Sport  string `json:"sport,omitempty"`

	// campos de game_state
	HomeTeam   string `json:"home_team,omitempty"`
	AwayTeam   string `json:"away_team,omitempty"`
	Status     string `json:"status,omitempty"`
	Period     int    `json:"period,omitempty"`
	Clock      string `json:"clock,omitempty"`
	Possession string `json:"possession,omitempty"`
	LastPlay   string `json:"last_play,omitempty"`
	HomeScore  int    `json:"home_score,omitempty"`
	AwayScore  int    `json:"away_score,omitempty"`

	// campos de odds
	Market        string  `json:"market,omitempty"`
	HomePrice     int     `json:"home_price,omitempty"`
	AwayPrice     int     `json:"away_price,omitempty"`
	OverPrice     int     `json:"over_price,omitempty"`
	UnderPrice    int     `json:"under_price,omitempty"`
	Line          float64 `json:"line,omitempty"`
	Suspended     bool    `json:"suspended,omitempty"`
	SuspendReason string  `json:"suspend_reason,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FinalResult é a visão do reconciliador sobre um jogo que o provedor já
// encerrou. Completed=false significa que o provedor ainda lista o jogo em
// andamento.
type FinalResult struct {
	GameID    string
	Sport     string
	HomeTeam  string
	AwayTeam  string
	Completed bool
	HomeScore int
	AwayScore int
	FetchedAt time.Time
}

// parseScores casa as entradas de placar por time do provedor com os nomes
// dos times do evento.
func parseScores(ev scoreEvent) (home, away int, err error) {
	for _, s := range ev.Scores {
		n, convErr := strconv.Atoi(strings.TrimSpace(s.Score))
		if convErr != nil {
			return 0, 0, fmt.Errorf("%w: unreadable score %q for %q", ErrBadPayload, s.Score, s.Name)
		}
		switch s.Name {
		case ev.HomeTeam:
			home = n
		case ev.AwayTeam:
			away = n
		}
	}
	return home, away, nil
}
