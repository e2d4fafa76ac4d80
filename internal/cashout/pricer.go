// Package cashout precifica saídas antecipadas de apostas ACTIVE e as
// executa com a mesma disciplina de compare-and-set da liquidação, de modo
// que um cash-out e uma liquidação disputando a mesma aposta resolvem para
// exatamente um vencedor.
package cashout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/pkg/oddsmath"
)

// ErrUnavailable significa que nenhuma oferta pode ser feita agora. O wrap
// carrega o motivo.
var ErrUnavailable = errors.New("cash-out unavailable")

// Offer é uma saída antecipada precificada. FairCents é o valor modelado
// antes da margem da casa.
type Offer struct {
	BetID          string    `json:"bet_id"`
	OfferCents     int64     `json:"offer_cents"`
	FairCents      int64     `json:"fair_cents"`
	WinProbability float64   `json:"win_probability"`
	QuotedAt       time.Time `json:"quoted_at"`
}

// PricerConfig ajusta o modelo. O valor zero é inutilizável; use Defaults.
type PricerConfig struct {
	// Margin é o corte da casa sobre o valor justo, ex. 0.10.
	Margin float64
	// LeadWeight desloca a probabilidade de vitória por ponto de vantagem
	// com o jogo completo.
	LeadWeight float64
	// FreshnessBound rejeita ofertas contra cotações mais velhas que isto.
	FreshnessBound time.Duration
	// PeriodsPerGame e PeriodLength mapeiam período+relógio para o
	// progresso do jogo.
	PeriodsPerGame int
	PeriodLength   time.Duration
}

// Defaults retorna o modelo de precificação usado em produção.
func Defaults() PricerConfig {
	return PricerConfig{
		Margin:         0.10,
		LeadWeight:     0.035,
		FreshnessBound: 5 * time.Second,
		PeriodsPerGame: 4,
		PeriodLength:   15 * time.Minute,
	}
}

// Pricer calcula ofertas. Quote é função pura dos seus argumentos.
type Pricer struct {
	cfg PricerConfig
}

func NewPricer(cfg PricerConfig) Pricer {
	return Pricer{cfg: cfg}
}

// Quote precifica uma saída antecipada da aposta contra o snapshot do jogo.
// Snapshot nil significa que o jogo não está no board. A oferta retornada é
// limitada a [0, stake+ganho potencial].
func (p Pricer) Quote(b *betstore.Bet, snap *marketstore.Snapshot, now time.Time) (Offer, error) {
	if b.Status != betstore.StatusActive {
		return Offer{}, fmt.Errorf("%w: bet is %s", ErrUnavailable, b.Status)
	}
	if snap == nil {
		return Offer{}, fmt.Errorf("%w: game %s is not on the board", ErrUnavailable, b.GameID)
	}
	if snap.Game.Status.Terminal() {
		return Offer{}, fmt.Errorf("%w: game is %s, awaiting settlement", ErrUnavailable, snap.Game.Status)
	}
	quote, ok := snap.Quotes[b.Market]
	if ok && quote.Suspended {
		return Offer{}, fmt.Errorf("%w: market is suspended (%s)", ErrUnavailable, quote.SuspendReason)
	}
	if ok && p.cfg.FreshnessBound > 0 && !quote.Fresh(now, p.cfg.FreshnessBound) {
		return Offer{}, fmt.Errorf("%w: market data is stale", ErrUnavailable)
	}

	prob, err := p.winProbability(b, snap.Game)
	if err != nil {
		return Offer{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	exposure := decimal.NewFromInt(b.StakeCents + b.PotentialWinCents)
	fair := exposure.Mul(decimal.NewFromFloat(prob))
	offered := fair.Mul(decimal.NewFromFloat(1 - p.cfg.Margin))

	fairCents := clampCents(fair.Round(0).IntPart(), b)
	offerCents := clampCents(offered.Round(0).IntPart(), b)

	return Offer{
		BetID:          b.ID,
		OfferCents:     offerCents,
		FairCents:      fairCents,
		WinProbability: prob,
		QuotedAt:       now,
	}, nil
}

// winProbability parte da probabilidade implícita no preço em que a aposta
// foi tomada e a desloca pela vantagem atual da aposta, ponderada por
// quanto do jogo já passou.
func (p Pricer) winProbability(b *betstore.Bet, g marketstore.GameState) (float64, error) {
	base, err := oddsmath.AmericanToImpliedProbability(b.OriginalOdds)
	if err != nil {
		return 0, err
	}
	lead, err := leadFor(b, g)
	if err != nil {
		return 0, err
	}
	shifted := base + p.cfg.LeadWeight*lead*p.progress(g)
	return clampProb(shifted), nil
}

// leadFor é a margem ao vivo a favor da aposta, em pontos.
func leadFor(b *betstore.Bet, g marketstore.GameState) (float64, error) {
	home, away := float64(g.HomeScore), float64(g.AwayScore)
	switch b.Market {
	case marketstore.MarketMoneyline:
		if b.Selection == marketstore.SelectionHome {
			return home - away, nil
		}
		return away - home, nil
	case marketstore.MarketSpread:
		if b.Selection == marketstore.SelectionHome {
			return home + b.Line - away, nil
		}
		return away - (home + b.Line), nil
	case marketstore.MarketTotal:
		if b.Selection == marketstore.SelectionOver {
			return home + away - b.Line, nil
		}
		return b.Line - (home + away), nil
	default:
		return 0, fmt.Errorf("no pricing model for market %q", b.Market)
	}
}

// progress estima a fração do jogo já jogada, em [0, 0.95]. O teto mantém
// uma lasca de incerteza precificada até o jogo de fato acabar.
func (p Pricer) progress(g marketstore.GameState) float64 {
	periods := p.cfg.PeriodsPerGame
	if periods <= 0 {
		periods = 4
	}
	if g.Status == marketstore.StatusHalftime {
		return 0.5
	}
	if g.Period <= 0 {
		return 0
	}
	done := float64(g.Period-1) / float64(periods)
	within := 1.0
	if remaining, ok := parsePeriodClock(g.Clock); ok && p.cfg.PeriodLength > 0 {
		within = 1 - remaining.Seconds()/p.cfg.PeriodLength.Seconds()
		if within < 0 {
			within = 0
		}
		if within > 1 {
			within = 1
		}
	}
	progress := done + within/float64(periods)
	if progress > 0.95 {
		return 0.95
	}
	if progress < 0 {
		return 0
	}
	return progress
}

func parsePeriodClock(clock string) (time.Duration, bool) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, false
	}
	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || min < 0 {
		return 0, false
	}
	sec, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || sec < 0 || sec > 59 {
		return 0, false
	}
	return time.Duration(min)*time.Minute + time.Duration(sec)*time.Second, true
}

func clampCents(v int64, b *betstore.Bet) int64 {
	if v < 0 {
		return 0
	}
	if max := b.StakeCents + b.PotentialWinCents; v > max {
		return max
	}
	return v
}

func clampProb(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
