package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// Pipeline leva updates normalizados para o market store e reporta o que
// aconteceu com cada um. Os callbacks são ganchos opcionais que o serviço
// liga a métricas, broadcast e ao arquivador de resultado frio.
type Pipeline struct {
	Store *marketstore.Store
	Log   *zap.Logger

	// OnApplied dispara depois que um update entra no store.
	OnApplied func(u marketstore.Update)
	// OnDropped dispara uma vez por update rejeitado com um rótulo de motivo
	// ("stale" ou "malformed").
	OnDropped func(reason string)
	// OnGameDone dispara quando um update de estado de jogo carrega status
	// terminal, com o snapshot final do jogo.
	OnGameDone func(ctx context.Context, snap marketstore.Snapshot)
}

// Apply ingere um lote. Updates velhos e malformados são descartados e
// contados; o lote sempre roda até o fim.
func (p *Pipeline) Apply(ctx context.Context, updates []marketstore.Update) {
	for _, u := range updates {
		err := p.Store.Ingest(u)
		switch {
		case err == nil:
			if p.OnApplied != nil {
				p.OnApplied(u)
			}
			if u.Kind == marketstore.KindGameState && u.Game.Status.Terminal() {
				if snap, ok := p.Store.Snapshot(u.GameID); ok && p.OnGameDone != nil {
					p.OnGameDone(ctx, snap)
				}
			}
		case errors.Is(err, marketstore.ErrStaleUpdate):
			p.drop("stale")
			p.Log.Debug("stale update dropped",
				zap.String("game_id", u.GameID), zap.Int("kind", int(u.Kind)))
		default:
			p.drop("malformed")
			p.Log.Warn("update rejected",
				zap.String("game_id", u.GameID), zap.Error(err))
		}
	}
}

func (p *Pipeline) drop(reason string) {
	if p.OnDropped != nil {
		p.OnDropped(reason)
	}
}
