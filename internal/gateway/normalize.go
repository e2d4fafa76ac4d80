package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/pkg/oddsmath"
)

// normalizeScoreEvent converte um registro de placar do provedor em um
// update de estado de jogo.
func normalizeScoreEvent(ev scoreEvent, now time.Time) (marketstore.Update, error) {
	if ev.ID == "" {
		return marketstore.Update{}, fmt.Errorf("%w: score event without id", ErrBadPayload)
	}
	if ev.HomeTeam == "" || ev.AwayTeam == "" {
		return marketstore.Update{}, fmt.Errorf("%w: score event %s without team names", ErrBadPayload, ev.ID)
	}

	home, away, err := parseScores(ev)
	if err != nil {
		return marketstore.Update{}, err
	}

	g := marketstore.GameState{
		GameID:    ev.ID,
		Sport:     ev.SportKey,
		HomeTeam:  ev.HomeTeam,
		AwayTeam:  ev.AwayTeam,
		HomeScore: home,
		AwayScore: away,
		UpdatedAt: now,
	}
	if ev.LastUpdate != nil && !ev.LastUpdate.IsZero() {
		g.UpdatedAt = *ev.LastUpdate
	}

	switch {
	case ev.Completed:
		g.Status = marketstore.StatusFinal
	case now.Before(ev.CommenceTime):
		g.Status = marketstore.StatusPre
	default:
		g.Status = marketstore.StatusInProgress
	}

	return marketstore.Update{Kind: marketstore.KindGameState, GameID: ev.ID, Game: &g}, nil
}

// normalizeOddsEvent converte um registro de odds do provedor em updates de
// odds, um por mercado. Mercados que falham na validação são descartados e
// reportados no erro agregado; os demais mercados ainda voltam.
func normalizeOddsEvent(ev oddsEvent, now time.Time) ([]marketstore.Update, error) {
	if ev.ID == "" {
		return nil, fmt.Errorf("%w: odds event without id", ErrBadPayload)
	}
	if len(ev.Bookmakers) == 0 {
		return nil, nil
	}

	// o motor cota um único book; o primeiro é o primário do provedor
	book := ev.Bookmakers[0]

	var updates []marketstore.Update
	var errs []error
	for _, m := range book.Markets {
		q, err := normalizeMarket(ev, book, m, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		quote := q
		updates = append(updates, marketstore.Update{
			Kind:   marketstore.KindOdds,
			GameID: ev.ID,
			Quote:  &quote,
		})
	}
	return updates, errors.Join(errs...)
}

func normalizeMarket(ev oddsEvent, book bookmaker, m marketOdds, now time.Time) (marketstore.Quote, error) {
	var q marketstore.Quote

	switch m.Key {
	case "h2h":
		q.Market = marketstore.MarketMoneyline
	case "spreads":
		q.Market = marketstore.MarketSpread
	case "totals":
		q.Market = marketstore.MarketTotal
	default:
		// mercados derivados de jogo passam sob a chave do provedor
		q.Market = marketstore.Market(m.Key)
	}

	q.UpdatedAt = m.LastUpdate
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = book.LastUpdate
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = now
	}

	for _, o := range m.Outcomes {
		if !oddsmath.ValidPrice(o.Price) {
			return q, fmt.Errorf("%w: game %s market %s outcome %q has price %d", ErrBadPayload, ev.ID, m.Key, o.Name, o.Price)
		}
		switch {
		case o.Name == ev.HomeTeam:
			q.HomePrice = o.Price
			if o.Point != nil {
				q.Line = *o.Point // linhas de spread são relativas ao mandante
			}
		case o.Name == ev.AwayTeam:
			q.AwayPrice = o.Price
		case strings.EqualFold(o.Name, "Over"):
			q.OverPrice = o.Price
			if o.Point != nil {
				q.Line = *o.Point
			}
		case strings.EqualFold(o.Name, "Under"):
			q.UnderPrice = o.Price
		default:
			return q, fmt.Errorf("%w: game %s market %s outcome %q matches neither team nor over/under", ErrBadPayload, ev.ID, m.Key, o.Name)
		}
	}

	if (q.HomePrice == 0 || q.AwayPrice == 0) && (q.OverPrice == 0 || q.UnderPrice == 0) {
		return q, fmt.Errorf("%w: game %s market %s is one-sided", ErrBadPayload, ev.ID, m.Key)
	}
	return q, nil
}

// normalizeFrame converte um frame do feed ao vivo em um update.
func normalizeFrame(f feedFrame, now time.Time) (marketstore.Update, error) {
	if f.GameID == "" {
		return marketstore.Update{}, fmt.Errorf("%w: frame without game id", ErrBadPayload)
	}

	ts := f.UpdatedAt
	if ts.IsZero() {
		ts = now
	}

	switch f.Type {
	case "game_state":
		status, err := parseGameStatus(f.Status)
		if err != nil {
			return marketstore.Update{}, err
		}
		return marketstore.Update{
			Kind:   marketstore.KindGameState,
			GameID: f.GameID,
			Game: &marketstore.GameState{
				GameID:     f.GameID,
				Sport:      f.Sport,
				HomeTeam:   f.HomeTeam,
				AwayTeam:   f.AwayTeam,
				Status:     status,
				Period:     f.Period,
				HomeScore:  f.HomeScore,
				AwayScore:  f.AwayScore,
				Clock:      f.Clock,
				Possession: f.Possession,
				LastPlay:   f.LastPlay,
				UpdatedAt:  ts,
			},
		}, nil

	case "odds":
		if f.Market == "" {
			return marketstore.Update{}, fmt.Errorf("%w: odds frame for %s without market", ErrBadPayload, f.GameID)
		}
		for _, price := range []int{f.HomePrice, f.AwayPrice, f.OverPrice, f.UnderPrice} {
			if price != 0 && !oddsmath.ValidPrice(price) {
				return marketstore.Update{}, fmt.Errorf("%w: odds frame for %s has price %d", ErrBadPayload, f.GameID, price)
			}
		}
		return marketstore.Update{
			Kind:   marketstore.KindOdds,
			GameID: f.GameID,
			Quote: &marketstore.Quote{
				Market:            marketstore.Market(f.Market),
				HomePrice:         f.HomePrice,
				AwayPrice:         f.AwayPrice,
				OverPrice:         f.OverPrice,
				UnderPrice:        f.UnderPrice,
				Line:              f.Line,
				ProviderSuspended: f.Suspended,
				SuspendReason:     f.SuspendReason,
				UpdatedAt:         ts,
			},
		}, nil

	default:
		return marketstore.Update{}, fmt.Errorf("%w: unknown frame type %q", ErrBadPayload, f.Type)
	}
}

func parseGameStatus(s string) (marketstore.GameStatus, error) {
	switch marketstore.GameStatus(strings.ToUpper(s)) {
	case marketstore.StatusPre:
		return marketstore.StatusPre, nil
	case marketstore.StatusInProgress:
		return marketstore.StatusInProgress, nil
	case marketstore.StatusHalftime:
		return marketstore.StatusHalftime, nil
	case marketstore.StatusFinal:
		return marketstore.StatusFinal, nil
	case marketstore.StatusPostponed:
		return marketstore.StatusPostponed, nil
	case marketstore.StatusCancelled:
		return marketstore.StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown game status %q", ErrBadPayload, s)
}
