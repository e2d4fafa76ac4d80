package cashout

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

func testPricerConfig() PricerConfig {
	return PricerConfig{
		Margin:         0.10,
		LeadWeight:     0.05,
		FreshnessBound: 5 * time.Second,
		PeriodsPerGame: 4,
		PeriodLength:   15 * time.Minute,
	}
}

// evenBet está ACTIVE a +100: probabilidade implícita 0.5, stake e ganho
// potencial ambos 10000.
func evenBet(sel marketstore.Selection) *betstore.Bet {
	return &betstore.Bet{
		ID:                "b1",
		GameID:            "g1",
		Market:            marketstore.MarketMoneyline,
		Selection:         sel,
		OriginalOdds:      100,
		StakeCents:        10000,
		PotentialWinCents: 10000,
		Status:            betstore.StatusActive,
	}
}

// halftimeSnap é 18-14 no intervalo com cotação de moneyline fresca:
// progresso 0.5, vantagem do mandante 4.
func halftimeSnap(now time.Time) *marketstore.Snapshot {
	return &marketstore.Snapshot{
		Game: marketstore.GameState{
			GameID:    "g1",
			Status:    marketstore.StatusHalftime,
			Period:    2,
			HomeScore: 18,
			AwayScore: 14,
			UpdatedAt: now,
		},
		Quotes: map[marketstore.Market]marketstore.Quote{
			marketstore.MarketMoneyline: {
				Market:    marketstore.MarketMoneyline,
				HomePrice: -180,
				AwayPrice: 160,
				UpdatedAt: now,
			},
		},
	}
}

func TestQuoteLeadingBet(t *testing.T) {
	p := NewPricer(testPricerConfig())
	now := time.Now()

	// p = 0.5 + 0.05*4*0.5 = 0.6; fair = 20000*0.6; offer = fair*0.9
	offer, err := p.Quote(evenBet(marketstore.SelectionHome), halftimeSnap(now), now)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if math.Abs(offer.WinProbability-0.6) > 1e-9 {
		t.Fatalf("win probability = %v, want 0.6", offer.WinProbability)
	}
	if offer.FairCents != 12000 {
		t.Fatalf("fair = %d, want 12000", offer.FairCents)
	}
	if offer.OfferCents != 10800 {
		t.Fatalf("offer = %d, want 10800", offer.OfferCents)
	}
	if !offer.QuotedAt.Equal(now) {
		t.Fatalf("quotedAt = %s", offer.QuotedAt)
	}
}

func TestQuoteTrailingBetWorthLess(t *testing.T) {
	p := NewPricer(testPricerConfig())
	now := time.Now()

	// p = 0.5 - 0.05*4*0.5 = 0.4
	offer, err := p.Quote(evenBet(marketstore.SelectionAway), halftimeSnap(now), now)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if offer.OfferCents != 7200 {
		t.Fatalf("offer = %d, want 7200", offer.OfferCents)
	}
	if offer.OfferCents >= 10800 {
		t.Fatal("trailing bet worth at least as much as leading bet")
	}
}

func TestQuoteClampsToExposure(t *testing.T) {
	p := NewPricer(testPricerConfig())
	now := time.Now()

	snap := halftimeSnap(now)
	snap.Game.HomeScore = 70 // goleada: probabilidade deslocada trava em 0.99

	offer, err := p.Quote(evenBet(marketstore.SelectionHome), snap, now)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if offer.WinProbability != 0.99 {
		t.Fatalf("probability = %v, want clamp at 0.99", offer.WinProbability)
	}
	max := int64(20000)
	if offer.OfferCents <= 0 || offer.OfferCents > max {
		t.Fatalf("offer = %d outside (0, %d]", offer.OfferCents, max)
	}

	snap.Game.HomeScore = 0
	snap.Game.AwayScore = 70
	offer, err = p.Quote(evenBet(marketstore.SelectionHome), snap, now)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if offer.WinProbability != 0.01 {
		t.Fatalf("probability = %v, want clamp at 0.01", offer.WinProbability)
	}
	if offer.OfferCents < 0 {
		t.Fatalf("offer = %d, negative", offer.OfferCents)
	}
}

func TestQuoteUnavailable(t *testing.T) {
	p := NewPricer(testPricerConfig())
	now := time.Now()

	wonBet := evenBet(marketstore.SelectionHome)
	wonBet.Status = betstore.StatusWon

	finalSnap := halftimeSnap(now)
	finalSnap.Game.Status = marketstore.StatusFinal

	suspendedSnap := halftimeSnap(now)
	q := suspendedSnap.Quotes[marketstore.MarketMoneyline]
	q.Suspended = true
	q.SuspendReason = "injury timeout"
	suspendedSnap.Quotes[marketstore.MarketMoneyline] = q

	staleSnap := halftimeSnap(now)
	q = staleSnap.Quotes[marketstore.MarketMoneyline]
	q.UpdatedAt = now.Add(-time.Minute)
	staleSnap.Quotes[marketstore.MarketMoneyline] = q

	exoticBet := evenBet(marketstore.SelectionHome)
	exoticBet.Market = "first_touchdown_scorer"

	tests := []struct {
		name string
		bet  *betstore.Bet
		snap *marketstore.Snapshot
	}{
		{"bet already settled", wonBet, halftimeSnap(now)},
		{"game off the board", evenBet(marketstore.SelectionHome), nil},
		{"game final", evenBet(marketstore.SelectionHome), finalSnap},
		{"market suspended", evenBet(marketstore.SelectionHome), suspendedSnap},
		{"quote stale", evenBet(marketstore.SelectionHome), staleSnap},
		{"no pricing model", exoticBet, halftimeSnap(now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Quote(tt.bet, tt.snap, now)
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("Quote = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestLeadFor(t *testing.T) {
	g := marketstore.GameState{HomeScore: 24, AwayScore: 17}

	tests := []struct {
		name   string
		market marketstore.Market
		sel    marketstore.Selection
		line   float64
		want   float64
	}{
		{"moneyline home", marketstore.MarketMoneyline, marketstore.SelectionHome, 0, 7},
		{"moneyline away", marketstore.MarketMoneyline, marketstore.SelectionAway, 0, -7},
		{"spread home covering", marketstore.MarketSpread, marketstore.SelectionHome, -3.5, 3.5},
		{"spread away", marketstore.MarketSpread, marketstore.SelectionAway, -3.5, -3.5},
		{"total over", marketstore.MarketTotal, marketstore.SelectionOver, 44.5, -3.5},
		{"total under", marketstore.MarketTotal, marketstore.SelectionUnder, 44.5, 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &betstore.Bet{Market: tt.market, Selection: tt.sel, Line: tt.line}
			got, err := leadFor(b, g)
			if err != nil {
				t.Fatalf("leadFor: %v", err)
			}
			if got != tt.want {
				t.Fatalf("leadFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	p := NewPricer(testPricerConfig())

	tests := []struct {
		name string
		g    marketstore.GameState
		want float64
	}{
		{"not started", marketstore.GameState{Status: marketstore.StatusPre}, 0},
		{"first period full clock", marketstore.GameState{Status: marketstore.StatusInProgress, Period: 1, Clock: "15:00"}, 0},
		{"halftime", marketstore.GameState{Status: marketstore.StatusHalftime, Period: 2}, 0.5},
		{"second period no clock", marketstore.GameState{Status: marketstore.StatusInProgress, Period: 2}, 0.5},
		{"late fourth capped", marketstore.GameState{Status: marketstore.StatusInProgress, Period: 4, Clock: "00:30"}, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.progress(tt.g); got != tt.want {
				t.Fatalf("progress = %v, want %v", got, tt.want)
			}
		})
	}
}
