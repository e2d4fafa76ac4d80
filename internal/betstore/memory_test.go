package betstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

var placed = time.Date(2025, 11, 2, 19, 30, 0, 0, time.UTC)

func activeBet(id, gameID string) *betstore.Bet {
	return &betstore.Bet{
		ID:                id,
		UserID:            "u1",
		GameID:            gameID,
		Market:            marketstore.MarketMoneyline,
		Selection:         marketstore.SelectionHome,
		OriginalOdds:      120,
		StakeCents:        10000,
		PotentialWinCents: 12000,
		Status:            betstore.StatusActive,
		PlacedAt:          placed,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := betstore.NewMemory()

	b := activeBet("", "g1")
	if err := m.CreateBet(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID == "" {
		t.Fatal("create did not assign an id")
	}

	got, err := m.GetBet(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StakeCents != 10000 || got.Status != betstore.StatusActive {
		t.Errorf("got %+v", got)
	}

	// a aposta retornada é uma cópia
	got.StakeCents = 1
	again, _ := m.GetBet(ctx, b.ID)
	if again.StakeCents != 10000 {
		t.Error("store mutated through returned bet")
	}
}

func TestCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	m := betstore.NewMemory()

	if err := m.CreateBet(ctx, activeBet("b1", "g1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := m.CreateBet(ctx, activeBet("b1", "g1"))
	if !errors.Is(err, betstore.ErrDuplicateID) {
		t.Fatalf("error = %v, want ErrDuplicateID", err)
	}
}

func TestGetMissing(t *testing.T) {
	m := betstore.NewMemory()
	if _, err := m.GetBet(context.Background(), "nope"); !errors.Is(err, betstore.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	m := betstore.NewMemory()
	if err := m.CreateBet(ctx, activeBet("b1", "g1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	settledAt := placed.Add(2 * time.Hour)
	err := m.CompareAndSetStatus(ctx, "b1", betstore.StatusActive, betstore.StatusWon, betstore.StatusFields{
		ResultAmountCents: 22000,
		SettledAt:         settledAt,
	})
	if err != nil {
		t.Fatalf("cas: %v", err)
	}

	got, _ := m.GetBet(ctx, "b1")
	if got.Status != betstore.StatusWon {
		t.Errorf("status = %s, want WON", got.Status)
	}
	if got.ResultAmountCents != 22000 {
		t.Errorf("result amount = %d, want 22000", got.ResultAmountCents)
	}
	if !got.SettledAt.Equal(settledAt) {
		t.Errorf("settled at = %v, want %v", got.SettledAt, settledAt)
	}

	// estado terminal recusa uma segunda transição
	err = m.CompareAndSetStatus(ctx, "b1", betstore.StatusActive, betstore.StatusCashedOut, betstore.StatusFields{CashedOutCents: 5000})
	if !errors.Is(err, betstore.ErrStatusConflict) {
		t.Fatalf("second cas error = %v, want ErrStatusConflict", err)
	}
}

func TestCompareAndSetStatusMissing(t *testing.T) {
	m := betstore.NewMemory()
	err := m.CompareAndSetStatus(context.Background(), "nope", betstore.StatusActive, betstore.StatusWon, betstore.StatusFields{})
	if !errors.Is(err, betstore.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSettlementCashOutRaceSettlesOnce(t *testing.T) {
	ctx := context.Background()
	m := betstore.NewMemory()
	if err := m.CreateBet(ctx, activeBet("b1", "g1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = m.CompareAndSetStatus(ctx, "b1", betstore.StatusActive, betstore.StatusWon, betstore.StatusFields{ResultAmountCents: 22000})
	}()
	go func() {
		defer wg.Done()
		errs[1] = m.CompareAndSetStatus(ctx, "b1", betstore.StatusActive, betstore.StatusCashedOut, betstore.StatusFields{CashedOutCents: 15000})
	}()
	wg.Wait()

	var won, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, betstore.ErrStatusConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || conflicts != 1 {
		t.Fatalf("winners = %d, conflicts = %d, want exactly 1 and 1", won, conflicts)
	}

	got, _ := m.GetBet(ctx, "b1")
	if !got.Status.Terminal() {
		t.Errorf("status = %s, want terminal", got.Status)
	}
}

func TestFindActiveForFinalizedGames(t *testing.T) {
	ctx := context.Background()
	m := betstore.NewMemory()
	cutoff := placed.Add(3 * time.Hour)

	// jogo finalizado: entra independente da idade
	fresh := activeBet("b-final", "g-final")
	fresh.PlacedAt = cutoff.Add(time.Hour)
	if err := m.CreateBet(ctx, fresh); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.RecordGameResult(ctx, betstore.GameResult{
		GameID: "g-final", Status: marketstore.StatusFinal, HomeScore: 20, AwayScore: 17,
	}); err != nil {
		t.Fatalf("record result: %v", err)
	}

	// aposta antiga em jogo não arquivado: entra pelo corte de idade
	old := activeBet("b-old", "g-unknown")
	old.PlacedAt = cutoff.Add(-time.Minute)
	if err := m.CreateBet(ctx, old); err != nil {
		t.Fatalf("create: %v", err)
	}

	// aposta recente em jogo ao vivo: fica de fora
	recent := activeBet("b-recent", "g-live")
	recent.PlacedAt = cutoff.Add(time.Minute)
	if err := m.CreateBet(ctx, recent); err != nil {
		t.Fatalf("create: %v", err)
	}

	// aposta já liquidada no jogo finalizado: fica de fora
	done := activeBet("b-done", "g-final")
	done.Status = betstore.StatusLost
	if err := m.CreateBet(ctx, done); err != nil {
		t.Fatalf("create: %v", err)
	}

	bets, err := m.FindActiveForFinalizedGames(ctx, cutoff)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(bets) != 2 {
		t.Fatalf("found %d bets, want 2", len(bets))
	}
	if bets[0].ID != "b-final" || bets[1].ID != "b-old" {
		t.Errorf("order = %s,%s, want b-final,b-old", bets[0].ID, bets[1].ID)
	}
}
