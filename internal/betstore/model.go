package betstore

import (
	"time"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// Status é a máquina de estados da aposta. ACTIVE é o único estado não
// terminal; liquidação, cash-out e anulação fazem cada um exatamente uma
// transição de saída, protegida por compare-and-set.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusWon       Status = "WON"
	StatusLost      Status = "LOST"
	StatusPushed    Status = "PUSHED"
	StatusCashedOut Status = "CASHED_OUT"
	StatusVoid      Status = "VOID"
)

// Terminal informa se o status não aceita mais nenhuma transição.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusPushed ||
		s == StatusCashedOut || s == StatusVoid
}

// Result é a string de resultado carregada nos eventos de liquidação.
func (s Status) Result() string {
	switch s {
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	case StatusPushed:
		return "pushed"
	case StatusVoid:
		return "void"
	case StatusCashedOut:
		return "cashed_out"
	}
	return ""
}

// Bet é a unidade persistida. OriginalOdds, StakeCents e PotentialWinCents
// ficam fixos na colocação; os campos Placed* fotografam o jogo naquele
// momento para auditoria e para a precificação do cash-out. Os campos de
// liquidação são escritos uma única vez, pela transição que vence a única
// saída de ACTIVE.
type Bet struct {
	ID                string
	UserID            string
	GameID            string
	Sport             string
	Market            marketstore.Market
	Selection         marketstore.Selection
	Line              float64
	OriginalOdds      int
	StakeCents        int64
	PotentialWinCents int64
	Status            Status
	PlacedAt          time.Time

	PlacedHomeScore  int
	PlacedAwayScore  int
	PlacedGameStatus marketstore.GameStatus
	PlacedPeriod     int

	SettledAt         time.Time // zero até o estado terminal
	ResultAmountCents int64
	CashedOutCents    int64
}

// StatusFields carrega as colunas gravadas junto com a transição de status.
// ResultAmountCents é o valor creditado de volta ao usuário em liquidação ou
// anulação; CashedOutCents é a oferta aceita no cash-out.
type StatusFields struct {
	ResultAmountCents int64
	CashedOutCents    int64
	SettledAt         time.Time
}

// GameResult é o registro frio de um jogo finalizado. Escrito quando o cache
// quente vê um status terminal e de novo, com autoridade, pelo reconciliador.
type GameResult struct {
	GameID      string
	Sport       string
	HomeTeam    string
	AwayTeam    string
	Status      marketstore.GameStatus
	HomeScore   int
	AwayScore   int
	FinalizedAt time.Time
}
