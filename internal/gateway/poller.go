package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Poller conduz o caminho de ingestão HTTP: placares e odds de cada esporte
// configurado em intervalo fixo. Falha de poll em um esporte nunca bloqueia
// os outros; só ErrUnauthorized para o poller, porque chave rejeitada não se
// conserta sozinha.
type Poller struct {
	Client   *Client
	Pipeline *Pipeline
	Sports   []string
	Interval time.Duration
	Log      *zap.Logger
}

// Run consulta uma vez de imediato e depois a cada tick até o contexto
// encerrar.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.pollOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	for _, sport := range p.Sports {
		updates, err := p.Client.FetchScores(ctx, sport)
		switch {
		case errors.Is(err, ErrUnauthorized):
			p.Log.Error("provider rejected credentials, stopping poller", zap.Error(err))
			return err
		case err != nil:
			p.Log.Warn("scores poll failed", zap.String("sport", sport), zap.Error(err))
		default:
			p.Pipeline.Apply(ctx, updates)
		}

		updates, err = p.Client.FetchOdds(ctx, sport)
		switch {
		case errors.Is(err, ErrUnauthorized):
			p.Log.Error("provider rejected credentials, stopping poller", zap.Error(err))
			return err
		case err != nil:
			p.Log.Warn("odds poll failed", zap.String("sport", sport), zap.Error(err))
		default:
			p.Pipeline.Apply(ctx, updates)
		}
	}
	return nil
}
