package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// Mirror mantém no Redis o snapshot corrente de cada jogo acompanhado,
// alimentado pelos eventos de mercado do barramento. A camada web lê o
// espelho sem tocar o estado quente; o TTL limpa jogos que pararam de
// receber atualização.
type Mirror struct {
	rdb     *redis.Client
	markets *marketstore.Store
	ttl     time.Duration
	log     *zap.Logger
}

func NewMirror(rdb *redis.Client, markets *marketstore.Store, ttl time.Duration, log *zap.Logger) *Mirror {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Mirror{rdb: rdb, markets: markets, ttl: ttl, log: log}
}

func keyGameSnapshot(gameID string) string { return "market:snapshot:" + gameID }

// Run regrava o snapshot do jogo a cada evento de odds ou de estado.
func (m *Mirror) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.GameID == "" {
				continue
			}
			m.refresh(ctx, ev.GameID)
		}
	}
}

func (m *Mirror) refresh(ctx context.Context, gameID string) {
	snap, ok := m.markets.Snapshot(gameID)
	if !ok {
		// jogo já saiu do estado quente; derruba a chave sem esperar o TTL
		if err := m.rdb.Del(ctx, keyGameSnapshot(gameID)).Err(); err != nil {
			m.log.Warn("drop mirrored snapshot", zap.String("game_id", gameID), zap.Error(err))
		}
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		m.log.Warn("marshal snapshot", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	if err := m.rdb.Set(ctx, keyGameSnapshot(gameID), payload, m.ttl).Err(); err != nil {
		m.log.Warn("mirror snapshot", zap.String("game_id", gameID), zap.Error(err))
	}
}
