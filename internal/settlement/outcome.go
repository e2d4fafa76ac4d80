package settlement

import (
	"fmt"
	"time"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// Outcome de uma aposta avaliada contra o placar final.
type Outcome int

const (
	OutcomeWon Outcome = iota + 1
	OutcomeLost
	OutcomePushed
)

// errUngradable marca mercados para os quais o avaliador não tem regra.
// Essas apostas são anuladas com devolução do stake em vez de chutadas.
type errUngradable struct{ market marketstore.Market }

func (e errUngradable) Error() string {
	return fmt.Sprintf("no grading rules for market %q", e.market)
}

// grade aplica as regras da casa para os três mercados centrais. Linhas de
// spread são relativas ao mandante como precificadas na colocação; spread e
// total cravados na linha empurram (push), assim como empate na moneyline.
func grade(b *betstore.Bet, homeScore, awayScore int) (Outcome, error) {
	switch b.Market {
	case marketstore.MarketMoneyline:
		return gradeMoneyline(b.Selection, homeScore, awayScore)
	case marketstore.MarketSpread:
		return gradeSpread(b.Selection, b.Line, homeScore, awayScore)
	case marketstore.MarketTotal:
		return gradeTotal(b.Selection, b.Line, homeScore, awayScore)
	default:
		return 0, errUngradable{market: b.Market}
	}
}

func gradeMoneyline(sel marketstore.Selection, home, away int) (Outcome, error) {
	if home == away {
		return OutcomePushed, nil
	}
	homeWon := home > away
	switch sel {
	case marketstore.SelectionHome:
		return wonOrLost(homeWon), nil
	case marketstore.SelectionAway:
		return wonOrLost(!homeWon), nil
	default:
		return 0, fmt.Errorf("selection %q is not a moneyline side", sel)
	}
}

func gradeSpread(sel marketstore.Selection, line float64, home, away int) (Outcome, error) {
	diff := float64(home) + line - float64(away)
	if diff == 0 {
		return OutcomePushed, nil
	}
	homeCovered := diff > 0
	switch sel {
	case marketstore.SelectionHome:
		return wonOrLost(homeCovered), nil
	case marketstore.SelectionAway:
		return wonOrLost(!homeCovered), nil
	default:
		return 0, fmt.Errorf("selection %q is not a spread side", sel)
	}
}

func gradeTotal(sel marketstore.Selection, line float64, home, away int) (Outcome, error) {
	total := float64(home + away)
	if total == line {
		return OutcomePushed, nil
	}
	over := total > line
	switch sel {
	case marketstore.SelectionOver:
		return wonOrLost(over), nil
	case marketstore.SelectionUnder:
		return wonOrLost(!over), nil
	default:
		return 0, fmt.Errorf("selection %q is not a totals side", sel)
	}
}

func wonOrLost(won bool) Outcome {
	if won {
		return OutcomeWon
	}
	return OutcomeLost
}

// resultFields mapeia um outcome para o status terminal e o dinheiro que
// volta ao usuário: stake mais ganhos na vitória, só o stake no push, nada
// na derrota.
func resultFields(b *betstore.Bet, out Outcome, settledAt time.Time) (betstore.Status, betstore.StatusFields) {
	fields := betstore.StatusFields{SettledAt: settledAt}
	switch out {
	case OutcomeWon:
		fields.ResultAmountCents = b.StakeCents + b.PotentialWinCents
		return betstore.StatusWon, fields
	case OutcomePushed:
		fields.ResultAmountCents = b.StakeCents
		return betstore.StatusPushed, fields
	default:
		return betstore.StatusLost, fields
	}
}

// voidFields devolve o stake, usado para jogos cancelados e mercados sem
// regra de avaliação.
func voidFields(b *betstore.Bet, settledAt time.Time) (betstore.Status, betstore.StatusFields) {
	return betstore.StatusVoid, betstore.StatusFields{
		ResultAmountCents: b.StakeCents,
		SettledAt:         settledAt,
	}
}
