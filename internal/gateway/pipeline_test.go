package gateway

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

func TestPipelineAppliesDropsAndArchives(t *testing.T) {
	store := marketstore.New(marketstore.SuspensionRules{})

	var applied int
	var drops []string
	var finals []string
	pipe := &Pipeline{
		Store: store,
		Log:   zap.NewNop(),
		OnApplied: func(marketstore.Update) {
			applied++
		},
		OnDropped: func(reason string) {
			drops = append(drops, reason)
		},
		OnGameDone: func(_ context.Context, snap marketstore.Snapshot) {
			finals = append(finals, snap.Game.GameID)
		},
	}

	game := func(id string, status marketstore.GameStatus, at time.Time) marketstore.Update {
		return marketstore.Update{
			Kind:   marketstore.KindGameState,
			GameID: id,
			Game:   &marketstore.GameState{GameID: id, HomeTeam: "A", AwayTeam: "B", Status: status, UpdatedAt: at},
		}
	}

	pipe.Apply(context.Background(), []marketstore.Update{
		game("g1", marketstore.StatusInProgress, now),
		game("g1", marketstore.StatusInProgress, now.Add(-time.Minute)), // velho
		{Kind: marketstore.KindGameState, GameID: ""},                   // malformado
		game("g1", marketstore.StatusFinal, now.Add(time.Minute)),       // terminal
	})

	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	if len(drops) != 2 || drops[0] != "stale" || drops[1] != "malformed" {
		t.Errorf("drops = %v, want [stale malformed]", drops)
	}
	if len(finals) != 1 || finals[0] != "g1" {
		t.Errorf("finals = %v, want [g1]", finals)
	}
}

func TestPipelineNilCallbacks(t *testing.T) {
	pipe := &Pipeline{Store: marketstore.New(marketstore.SuspensionRules{}), Log: zap.NewNop()}

	pipe.Apply(context.Background(), []marketstore.Update{
		{Kind: marketstore.KindGameState, GameID: "g1", Game: &marketstore.GameState{
			GameID: "g1", Status: marketstore.StatusFinal, UpdatedAt: now,
		}},
		{Kind: marketstore.KindGameState, GameID: ""},
	})

	if _, ok := pipe.Store.Snapshot("g1"); !ok {
		t.Fatal("update not applied")
	}
}
