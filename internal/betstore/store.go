package betstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("bet not found")

	// ErrStatusConflict é retornado por CompareAndSetStatus quando a aposta
	// já não está no status esperado. O lado perdedor de uma corrida entre
	// liquidação e cash-out o recebe e não deve repetir às cegas.
	ErrStatusConflict = errors.New("bet status conflict")

	// ErrDuplicateID protege contra reuso de ID de aposta na criação.
	ErrDuplicateID = errors.New("duplicate bet id")
)

// Store é o contrato de persistência do motor. CompareAndSetStatus é a
// primitiva de concorrência da qual liquidação e cash-out dependem: para
// qualquer aposta, exatamente uma transição de saída de ACTIVE pode vencer.
type Store interface {
	CreateBet(ctx context.Context, b *Bet) error
	GetBet(ctx context.Context, id string) (*Bet, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next Status, fields StatusFields) error

	// FindActiveForFinalizedGames retorna apostas ACTIVE devidas para
	// liquidação: o jogo tem resultado final arquivado, ou a aposta passou
	// do corte de idade e o reconciliador precisa consultar o provedor.
	FindActiveForFinalizedGames(ctx context.Context, placedBefore time.Time) ([]*Bet, error)

	// RecordGameResult arquiva (upsert) um jogo finalizado.
	RecordGameResult(ctx context.Context, res GameResult) error

	// GetGameResult lê um resultado arquivado, ou ErrNotFound.
	GetGameResult(ctx context.Context, gameID string) (*GameResult, error)
}
