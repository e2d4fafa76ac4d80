package marketstore

import (
	"strconv"
	"strings"
	"time"
)

// SuspensionRules deriva suspensão de mercado do estado ao vivo do jogo,
// por cima da flag de suspensão do próprio provedor. O store reavalia as
// regras a cada update ingerido, então a suspensão cai assim que a condição
// que a disparou desaparece.
type SuspensionRules struct {
	// PeriodWindow suspende os mercados quando o relógio está no trecho
	// final de um período. Zero desliga a regra.
	PeriodWindow time.Duration
	// StoppageKeywords suspendem os mercados enquanto o texto do último
	// lance menciona uma delas ("injury", "review", ...). Comparação sem
	// diferenciar maiúsculas.
	StoppageKeywords []string
}

// Evaluate retorna o estado efetivo de suspensão de uma cotação sob o
// estado corrente do jogo.
func (r SuspensionRules) Evaluate(g GameState, q Quote) (bool, string) {
	if q.ProviderSuspended {
		if q.SuspendReason != "" {
			return true, q.SuspendReason
		}
		return true, "provider"
	}

	if r.PeriodWindow > 0 && g.Status == StatusInProgress {
		if remaining, ok := parseClock(g.Clock); ok && remaining <= r.PeriodWindow {
			return true, "end_of_period"
		}
	}

	if g.Status.Live() && g.LastPlay != "" {
		play := strings.ToLower(g.LastPlay)
		for _, kw := range r.StoppageKeywords {
			if kw != "" && strings.Contains(play, strings.ToLower(kw)) {
				return true, "stoppage:" + strings.ToLower(kw)
			}
		}
	}

	return false, ""
}

// parseClock lê um relógio de período "MM:SS". Relógio que não parseia
// desliga a regra em vez de suspender o mercado.
func parseClock(clock string) (time.Duration, bool) {
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
