package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// Feed consome o stream WebSocket de placar ao vivo do provedor e empurra
// updates normalizados pelo pipeline. Reconecta com espera fixa até o
// contexto encerrar.
type Feed struct {
	URL      string
	Pipeline *Pipeline
	Log      *zap.Logger

	ReconnectWait time.Duration
}

// Start roda o laço de conectar, escutar e reconectar.
func (f *Feed) Start(ctx context.Context) {
	wait := f.ReconnectWait
	if wait <= 0 {
		wait = 3 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			f.Log.Info("context canceled, stopping live feed")
			return
		default:
			if err := f.connectAndListen(ctx); err != nil {
				f.Log.Warn("live feed disconnected", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}
}

// connectAndListen disca o stream e processa frames até a conexão cair ou o
// contexto encerrar.
func (f *Feed) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.Log.Info("connected to live feed", zap.String("url", f.URL))

	// destrava o ReadMessage quando o contexto encerra
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var frame feedFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			f.Log.Warn("invalid feed frame", zap.Error(err))
			continue
		}

		u, err := normalizeFrame(frame, time.Now())
		if err != nil {
			f.Log.Warn("feed frame rejected", zap.Error(err))
			continue
		}
		f.Pipeline.Apply(ctx, []marketstore.Update{u})
	}
}
