package cashout

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

func testService(t *testing.T) (*Service, *marketstore.Store, *betstore.Memory) {
	t.Helper()
	markets := marketstore.New(marketstore.SuspensionRules{})
	bets := betstore.NewMemory()
	svc := NewService(markets, bets, Config{
		Pricer:           testPricerConfig(),
		AcceptDriftCents: 100,
	}, zap.NewNop())
	return svc, markets, bets
}

// seedHalftimeGame coloca g1 no board 18-14 no intervalo com cotação de
// moneyline fresca, e uma aposta ACTIVE even-money no mandante no store. A
// oferta ao vivo dessa aposta é 10800 (ver testes do pricer).
func seedHalftimeGame(t *testing.T, markets *marketstore.Store, bets *betstore.Memory) *betstore.Bet {
	t.Helper()
	now := time.Now()
	updates := []marketstore.Update{
		{
			Kind:   marketstore.KindGameState,
			GameID: "g1",
			Game: &marketstore.GameState{
				GameID:    "g1",
				Status:    marketstore.StatusHalftime,
				Period:    2,
				HomeScore: 18,
				AwayScore: 14,
				UpdatedAt: now,
			},
		},
		{
			Kind:   marketstore.KindOdds,
			GameID: "g1",
			Quote: &marketstore.Quote{
				Market:    marketstore.MarketMoneyline,
				HomePrice: -180,
				AwayPrice: 160,
				UpdatedAt: now,
			},
		},
	}
	for _, u := range updates {
		if err := markets.Ingest(u); err != nil {
			t.Fatal(err)
		}
	}

	b := evenBet(marketstore.SelectionHome)
	if err := bets.CreateBet(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestQuoteBet(t *testing.T) {
	svc, markets, bets := testService(t)
	b := seedHalftimeGame(t, markets, bets)

	offer, err := svc.QuoteBet(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("QuoteBet: %v", err)
	}
	if offer.OfferCents != 10800 {
		t.Fatalf("offer = %d, want 10800", offer.OfferCents)
	}
	if offer.BetID != b.ID {
		t.Fatalf("offer for %q, want %q", offer.BetID, b.ID)
	}
}

func TestQuoteBetNotFound(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.QuoteBet(context.Background(), "ghost")
	if !errors.Is(err, betstore.ErrNotFound) {
		t.Fatalf("QuoteBet = %v, want ErrNotFound", err)
	}
}

func TestAcceptExecutesAtCurrentOffer(t *testing.T) {
	svc, markets, bets := testService(t)
	b := seedHalftimeGame(t, markets, bets)

	var events []Offer
	svc.OnCashedOut = func(_ betstore.Bet, offer Offer) { events = append(events, offer) }

	// apresentado um pouco abaixo da oferta ao vivo, dentro da tolerância
	updated, err := svc.Accept(context.Background(), b.ID, 10750)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if updated.Status != betstore.StatusCashedOut {
		t.Fatalf("status = %s, want CASHED_OUT", updated.Status)
	}
	if updated.CashedOutCents != 10800 {
		t.Fatalf("cashed out at %d, want current offer 10800", updated.CashedOutCents)
	}

	stored, err := bets.GetBet(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != betstore.StatusCashedOut || stored.CashedOutCents != 10800 {
		t.Fatalf("persisted = %s/%d", stored.Status, stored.CashedOutCents)
	}
	if len(events) != 1 || events[0].OfferCents != 10800 {
		t.Fatalf("events = %v", events)
	}
}

func TestAcceptRejectsDriftedOffer(t *testing.T) {
	svc, markets, bets := testService(t)
	b := seedHalftimeGame(t, markets, bets)

	_, err := svc.Accept(context.Background(), b.ID, 9000)
	var oc *OfferChangedError
	if !errors.As(err, &oc) {
		t.Fatalf("Accept = %v, want OfferChangedError", err)
	}
	if oc.Current.OfferCents != 10800 {
		t.Fatalf("re-offer = %d, want 10800", oc.Current.OfferCents)
	}

	stored, _ := bets.GetBet(context.Background(), b.ID)
	if stored.Status != betstore.StatusActive {
		t.Fatalf("bet transitioned on rejected accept: %s", stored.Status)
	}
}

func TestAcceptUnavailableWhenBetSettled(t *testing.T) {
	svc, markets, bets := testService(t)
	b := seedHalftimeGame(t, markets, bets)

	err := bets.CompareAndSetStatus(context.Background(), b.ID,
		betstore.StatusActive, betstore.StatusWon,
		betstore.StatusFields{ResultAmountCents: 20000, SettledAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Accept(context.Background(), b.ID, 10800)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Accept = %v, want ErrUnavailable", err)
	}
}

func TestAcceptLosesRaceToSettlement(t *testing.T) {
	svc, markets, bets := testService(t)
	b := seedHalftimeGame(t, markets, bets)

	// liquida a aposta entre a cotação e o CAS, como uma execução
	// concorrente do reconciliador faria
	svc.now = func() time.Time {
		_ = bets.CompareAndSetStatus(context.Background(), b.ID,
			betstore.StatusActive, betstore.StatusWon,
			betstore.StatusFields{ResultAmountCents: 20000, SettledAt: time.Now()})
		return time.Now()
	}

	_, err := svc.Accept(context.Background(), b.ID, 10800)
	if !errors.Is(err, betstore.ErrStatusConflict) {
		t.Fatalf("Accept = %v, want ErrStatusConflict", err)
	}

	stored, _ := bets.GetBet(context.Background(), b.ID)
	if stored.Status != betstore.StatusWon || stored.ResultAmountCents != 20000 {
		t.Fatalf("settlement overwritten: %s/%d", stored.Status, stored.ResultAmountCents)
	}
}
