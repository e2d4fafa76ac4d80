package marketstore

import "time"

// GameStatus é a fase de vida do jogo conforme reportada pelo provedor.
type GameStatus string

const (
	StatusPre        GameStatus = "PRE"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusHalftime   GameStatus = "HALFTIME"
	StatusFinal      GameStatus = "FINAL"
	StatusPostponed  GameStatus = "POSTPONED"
	StatusCancelled  GameStatus = "CANCELLED"
)

// Live diz se o jogo está em andamento e pode aceitar apostas.
func (s GameStatus) Live() bool {
	return s == StatusInProgress || s == StatusHalftime
}

// Terminal diz se não haverá mais jogo.
func (s GameStatus) Terminal() bool {
	return s == StatusFinal || s == StatusCancelled
}

// Market identifica um mercado apostável de um jogo.
type Market string

const (
	MarketMoneyline Market = "moneyline"
	MarketSpread    Market = "spread"
	MarketTotal     Market = "total"
)

// Selection é o lado do mercado em que a aposta é tomada.
type Selection string

const (
	SelectionHome  Selection = "home"
	SelectionAway  Selection = "away"
	SelectionOver  Selection = "over"
	SelectionUnder Selection = "under"
)

// ValidFor diz se a seleção pertence ao mercado.
func (s Selection) ValidFor(m Market) bool {
	switch m {
	case MarketMoneyline, MarketSpread:
		return s == SelectionHome || s == SelectionAway
	case MarketTotal:
		return s == SelectionOver || s == SelectionUnder
	}
	return false
}

// GameState é a visão autoritativa de um jogo ao vivo. Só muda via
// Store.Ingest; todo o resto lê cópias de snapshot.
type GameState struct {
	GameID     string     `json:"game_id"`
	Sport      string     `json:"sport,omitempty"` // chave de esporte do provedor, ex: "americanfootball_nfl"
	HomeTeam   string     `json:"home_team"`
	AwayTeam   string     `json:"away_team"`
	Status     GameStatus `json:"status"`
	Period     int        `json:"period,omitempty"`
	HomeScore  int        `json:"home_score"`
	AwayScore  int        `json:"away_score"`
	Clock      string     `json:"clock,omitempty"` // "MM:SS" restante no período, vazio quando não reportado
	Possession string     `json:"possession,omitempty"`
	LastPlay   string     `json:"last_play,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"` // timestamp do provedor, decide o last-write-wins
}

// Quote é o preço de dois lados para um mercado de um jogo.
// Moneyline e spread cotam HomePrice/AwayPrice; total cota
// OverPrice/UnderPrice. Line é o spread (relativo ao mandante) ou a linha
// de pontos totais, zero para moneyline.
type Quote struct {
	Market            Market    `json:"market"`
	HomePrice         int       `json:"home_price,omitempty"`
	AwayPrice         int       `json:"away_price,omitempty"`
	OverPrice         int       `json:"over_price,omitempty"`
	UnderPrice        int       `json:"under_price,omitempty"`
	Line              float64   `json:"line,omitempty"`
	ProviderSuspended bool      `json:"provider_suspended"`
	Suspended         bool      `json:"suspended"`
	SuspendReason     string    `json:"suspend_reason,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Price retorna o preço americano da seleção dada.
func (q Quote) Price(sel Selection) (int, bool) {
	switch sel {
	case SelectionHome:
		return q.HomePrice, q.HomePrice != 0
	case SelectionAway:
		return q.AwayPrice, q.AwayPrice != 0
	case SelectionOver:
		return q.OverPrice, q.OverPrice != 0
	case SelectionUnder:
		return q.UnderPrice, q.UnderPrice != 0
	}
	return 0, false
}

// Fresh diz se a cotação é recente o bastante para precificar.
func (q Quote) Fresh(now time.Time, bound time.Duration) bool {
	return now.Sub(q.UpdatedAt) <= bound
}

// Snapshot é uma cópia profunda do estado e das cotações de um jogo,
// internamente consistente no momento em que foi tirada.
type Snapshot struct {
	Game   GameState        `json:"game"`
	Quotes map[Market]Quote `json:"quotes"`
}

// UpdateKind marca a variante carregada por um Update.
type UpdateKind int

const (
	KindGameState UpdateKind = iota + 1
	KindOdds
)

// Update é o único tipo normalizado produzido na fronteira do gateway.
// Exatamente um de Game/Quote vem preenchido, conforme Kind.
type Update struct {
	Kind   UpdateKind
	GameID string
	Game   *GameState
	Quote  *Quote
}
