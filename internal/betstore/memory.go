package betstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implementa Store em processo, com semântica de compare-and-set
// idêntica à da implementação Postgres. Testes e instâncias isoladas criam
// uma por uso; não há estado compartilhado entre instâncias.
type Memory struct {
	mu      sync.RWMutex
	bets    map[string]*Bet
	results map[string]GameResult
}

func NewMemory() *Memory {
	return &Memory{
		bets:    make(map[string]*Bet),
		results: make(map[string]GameResult),
	}
}

func (m *Memory) CreateBet(ctx context.Context, b *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, ok := m.bets[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
	}
	cp := *b
	m.bets[b.ID] = &cp
	return nil
}

func (m *Memory) GetBet(ctx context.Context, id string) (*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) CompareAndSetStatus(ctx context.Context, id string, expected, next Status, fields StatusFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[id]
	if !ok {
		return ErrNotFound
	}
	if b.Status != expected {
		return fmt.Errorf("%w: bet %s is %s, expected %s", ErrStatusConflict, id, b.Status, expected)
	}

	b.Status = next
	b.ResultAmountCents = fields.ResultAmountCents
	b.CashedOutCents = fields.CashedOutCents
	b.SettledAt = fields.SettledAt
	return nil
}

func (m *Memory) FindActiveForFinalizedGames(ctx context.Context, placedBefore time.Time) ([]*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bets []*Bet
	for _, b := range m.bets {
		if b.Status != StatusActive {
			continue
		}
		_, finalized := m.results[b.GameID]
		if !finalized && !b.PlacedAt.Before(placedBefore) {
			continue
		}
		cp := *b
		bets = append(bets, &cp)
	}

	sort.Slice(bets, func(i, j int) bool {
		if bets[i].GameID != bets[j].GameID {
			return bets[i].GameID < bets[j].GameID
		}
		return bets[i].PlacedAt.Before(bets[j].PlacedAt)
	})
	return bets, nil
}

func (m *Memory) RecordGameResult(ctx context.Context, res GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[res.GameID] = res
	return nil
}

func (m *Memory) GetGameResult(ctx context.Context, gameID string) (*GameResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res, ok := m.results[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := res
	return &cp, nil
}
