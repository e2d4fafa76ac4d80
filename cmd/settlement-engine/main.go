package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/pkg/contracts/events"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/broadcast"
	"github.com/radieske/live-settlement-engine/internal/cashout"
	"github.com/radieske/live-settlement-engine/internal/gateway"
	"github.com/radieske/live-settlement-engine/internal/httpapi"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/internal/placement"
	"github.com/radieske/live-settlement-engine/internal/settlement"
	"github.com/radieske/live-settlement-engine/internal/shared/cache"
	"github.com/radieske/live-settlement-engine/internal/shared/config"
	"github.com/radieske/live-settlement-engine/internal/shared/db"
	sharedkafka "github.com/radieske/live-settlement-engine/internal/shared/kafka"
	"github.com/radieske/live-settlement-engine/internal/shared/logger"
	"github.com/radieske/live-settlement-engine/internal/shared/metrics"
)

func main() {
	// .env opcional facilita execução local
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	log, err := logger.NewWithFile(cfg.ServiceName, cfg.Env, logger.FileSink{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres guarda apostas, transições e resultados arquivados
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	// Redis serve o espelho de snapshots para a camada web
	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	// Métricas Prometheus, injetadas nos componentes como callbacks
	updatesApplied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_updates_applied_total", Help: "atualizações aplicadas ao estado de mercado"}, []string{"kind"})
	updatesDropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_updates_dropped_total", Help: "atualizações descartadas na ingestão"}, []string{"reason"})
	betsPlaced := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_bets_placed_total", Help: "apostas aceitas"})
	betsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_bets_rejected_total", Help: "apostas recusadas por motivo"}, []string{"reason"})
	betsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_bets_settled_total", Help: "apostas liquidadas por resultado"}, []string{"result"})
	casConflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_cas_conflicts_total", Help: "transições perdidas por corrida de status"})
	breakerTrips := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_breaker_trips_total", Help: "desarmes do circuito do verificador"})
	cashOuts := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_cashouts_total", Help: "cash-outs executados"})
	busDropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_broadcast_dropped_total", Help: "eventos perdidos por assinante lento"}, []string{"topic"})
	kafkaPublished := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_kafka_published_total", Help: "eventos publicados no kafka"}, []string{"topic"})
	kafkaErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_kafka_errors_total", Help: "falhas de publicação no kafka"}, []string{"topic"})
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{Name: "engine_ws_clients", Help: "conexões websocket ativas"})
	prometheus.MustRegister(updatesApplied, updatesDropped, betsPlaced, betsRejected,
		betsSettled, casConflicts, breakerTrips, cashOuts, busDropped,
		kafkaPublished, kafkaErrors, wsClients)

	// Estado de mercado quente com suspensão derivada do jogo
	markets := marketstore.New(marketstore.SuspensionRules{
		PeriodWindow:     cfg.SuspensionPeriodWindow,
		StoppageKeywords: cfg.StoppageKeywords,
	})
	bets := betstore.NewPostgres(pg)

	// Barramento interno de eventos
	bus := broadcast.NewBus(cfg.BroadcastBuffer)
	bus.OnDropped = func(topic string) { busDropped.WithLabelValues(topic).Inc() }

	// Gateway do provedor: HTTP paced + feed ws, desaguando no pipeline
	client := gateway.NewClient(gateway.ClientConfig{
		BaseURL:        cfg.ProviderBaseURL,
		APIKey:         cfg.ProviderAPIKey,
		Timeout:        cfg.ProviderTimeout,
		RequestsPerSec: cfg.ProviderRatePerSec,
		Burst:          cfg.ProviderBurst,
	}, log.With(zap.String("component", "gateway")))

	pipeline := &gateway.Pipeline{
		Store: markets,
		Log:   log.With(zap.String("component", "pipeline")),
		OnApplied: func(u marketstore.Update) {
			switch u.Kind {
			case marketstore.KindOdds:
				updatesApplied.WithLabelValues("odds").Inc()
				ev := oddsEvent(u)
				// a suspensão derivada vive no estado avaliado, não no update cru
				if snap, ok := markets.Snapshot(u.GameID); ok {
					if q, ok := snap.Quotes[u.Quote.Market]; ok {
						ev.Suspended = q.Suspended || q.ProviderSuspended
						ev.SuspendReason = q.SuspendReason
					}
				}
				bus.Publish(broadcast.Event{
					Topic:   broadcast.TopicOdds,
					Type:    broadcast.TypeOddsUpdate,
					GameID:  u.GameID,
					Payload: ev,
					At:      time.Now(),
				})
			case marketstore.KindGameState:
				updatesApplied.WithLabelValues("game_state").Inc()
				bus.Publish(broadcast.Event{
					Topic:   broadcast.TopicGameState,
					Type:    broadcast.TypeGameState,
					GameID:  u.GameID,
					Payload: gameStateEvent(u),
					At:      time.Now(),
				})
			}
		},
		OnDropped: func(reason string) { updatesDropped.WithLabelValues(reason).Inc() },
		// O feed viu o jogo terminar: arquiva o resultado provisório para o
		// verificador; o estado quente só é removido após a liquidação.
		OnGameDone: func(ctx context.Context, snap marketstore.Snapshot) {
			res := betstore.GameResult{
				GameID:      snap.Game.GameID,
				Sport:       snap.Game.Sport,
				HomeTeam:    snap.Game.HomeTeam,
				AwayTeam:    snap.Game.AwayTeam,
				Status:      snap.Game.Status,
				HomeScore:   snap.Game.HomeScore,
				AwayScore:   snap.Game.AwayScore,
				FinalizedAt: snap.Game.UpdatedAt,
			}
			if err := bets.RecordGameResult(ctx, res); err != nil {
				log.Warn("archive terminal game", zap.String("game_id", res.GameID), zap.Error(err))
			}
		},
	}

	poller := &gateway.Poller{
		Client:   client,
		Pipeline: pipeline,
		Sports:   cfg.ProviderSports,
		Interval: cfg.PollInterval,
		Log:      log.With(zap.String("component", "poller")),
	}
	feed := &gateway.Feed{
		URL:      cfg.ProviderFeedURL,
		Pipeline: pipeline,
		Log:      log.With(zap.String("component", "feed")),
	}

	// Coordenador de apostas
	coordinator := placement.New(markets, bets, placement.Config{
		OddsTolerance:  cfg.PlacementOddsTolerance,
		FreshnessBound: cfg.OddsFreshnessBound,
		MaxStakeCents:  cfg.MaxStakeCents,
	}, log.With(zap.String("component", "placement")))
	coordinator.OnPlaced = func(b betstore.Bet) {
		betsPlaced.Inc()
		bus.Publish(broadcast.Event{
			Topic:  broadcast.TopicBets,
			Type:   broadcast.TypeBetPlaced,
			GameID: b.GameID,
			Payload: events.BetPlaced{
				BetID:             b.ID,
				UserID:            b.UserID,
				GameID:            b.GameID,
				Market:            string(b.Market),
				Selection:         string(b.Selection),
				Line:              b.Line,
				Odds:              b.OriginalOdds,
				StakeCents:        b.StakeCents,
				PotentialWinCents: b.PotentialWinCents,
				TsUnixMs:          b.PlacedAt.UnixMilli(),
			},
			At: time.Now(),
		})
	}
	coordinator.OnRejected = func(code string) { betsRejected.WithLabelValues(code).Inc() }

	// Cash-out
	pricerCfg := cashout.Defaults()
	pricerCfg.Margin = cfg.CashOutMargin
	pricerCfg.LeadWeight = cfg.CashOutLeadWeight
	pricerCfg.FreshnessBound = cfg.OddsFreshnessBound
	cashOutSvc := cashout.NewService(markets, bets, cashout.Config{
		Pricer:           pricerCfg,
		AcceptDriftCents: cfg.CashOutAcceptDriftCents,
	}, log.With(zap.String("component", "cashout")))
	cashOutSvc.OnCashedOut = func(b betstore.Bet, offer cashout.Offer) {
		cashOuts.Inc()
		bus.Publish(broadcast.Event{
			Topic:  broadcast.TopicBets,
			Type:   broadcast.TypeBetCashedOut,
			GameID: b.GameID,
			Payload: events.BetCashedOut{
				BetID:       b.ID,
				UserID:      b.UserID,
				GameID:      b.GameID,
				AmountCents: b.CashedOutCents,
				TsUnixMs:    b.SettledAt.UnixMilli(),
			},
			At: time.Now(),
		})
	}

	// Verificador de liquidação
	quiet, err := settlement.ParseQuietWindow(cfg.QuietHours)
	if err != nil {
		log.Fatal("quiet hours", zap.Error(err))
	}
	reconciler := settlement.New(bets, markets, client, settlement.Config{
		Interval:             cfg.ReconcileInterval,
		MaxRetries:           cfg.MaxRetries,
		RetryBackoffBase:     cfg.RetryBackoffBase,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Quiet:                quiet,
		SettleGameAge:        cfg.SettleGameAge,
		RunTimeout:           cfg.RunTimeout,
	}, log.With(zap.String("component", "settlement")))
	reconciler.OnBetSettled = func(b betstore.Bet) {
		betsSettled.WithLabelValues(b.Status.Result()).Inc()
		bus.Publish(broadcast.Event{
			Topic:  broadcast.TopicBets,
			Type:   broadcast.TypeBetSettled,
			GameID: b.GameID,
			Payload: events.BetSettled{
				BetID:             b.ID,
				UserID:            b.UserID,
				GameID:            b.GameID,
				Result:            b.Status.Result(),
				ResultAmountCents: b.ResultAmountCents,
				TsUnixMs:          b.SettledAt.UnixMilli(),
			},
			At: time.Now(),
		})
	}
	reconciler.OnCASConflict = func() { casConflicts.Inc() }
	reconciler.OnBreakerTripped = func() { breakerTrips.Inc() }

	// Hub WebSocket para os clientes web
	hub := broadcast.NewHub(func(r *http.Request) bool { return true },
		log.With(zap.String("component", "ws")))
	hub.OnConnect = func() { wsClients.Inc() }
	hub.OnDisconnect = func() { wsClients.Dec() }

	// Pontes de difusão: hub ws, espelho Redis e sink Kafka
	var wg sync.WaitGroup

	wsSub := bus.Subscribe(broadcast.TopicOdds, broadcast.TopicGameState, broadcast.TopicBets)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx, wsSub.C)
	}()

	mirror := broadcast.NewMirror(redisClient, markets, cfg.RedisSnapshotTTL,
		log.With(zap.String("component", "mirror")))
	mirrorSub := bus.Subscribe(broadcast.TopicOdds, broadcast.TopicGameState)
	wg.Add(1)
	go func() {
		defer wg.Done()
		mirror.Run(ctx, mirrorSub.C)
	}()

	writers := map[string]*sharedkafka.Writer{
		broadcast.TypeOddsUpdate:   sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOdds),
		broadcast.TypeGameState:    sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameState),
		broadcast.TypeBetPlaced:    sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced),
		broadcast.TypeBetSettled:   sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled),
		broadcast.TypeBetCashedOut: sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetCashedOut),
	}
	defer func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}()
	sink := broadcast.NewKafkaSink(writers, log.With(zap.String("component", "kafka")))
	sink.OnPublished = func(topic string) { kafkaPublished.WithLabelValues(topic).Inc() }
	sink.OnError = func(topic string) { kafkaErrors.WithLabelValues(topic).Inc() }
	kafkaSub := bus.Subscribe(broadcast.TopicOdds, broadcast.TopicGameState, broadcast.TopicBets)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sink.Run(ctx, kafkaSub.C)
	}()

	// Ingestão do provedor
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("poller stopped", zap.Error(err))
		}
	}()
	if cfg.ProviderFeedURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed.Start(ctx)
		}()
	}

	// Verificador agendado
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	// API pública
	api := &httpapi.API{
		Log:       log.With(zap.String("component", "api")),
		Markets:   markets,
		Bets:      bets,
		Placement: coordinator,
		CashOut:   cashOutSvc,
		Scheduler: reconciler,
		Hub:       hub,
	}
	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}
	go func() {
		log.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api server", zap.Error(err))
		}
	}()

	// Métricas e health com ping nas dependências
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsAddr, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", cfg.MetricsAddr))

	<-ctx.Done()
	log.Info("shutdown signal received")

	// desligamento ordenado: API para de aceitar, workers drenam, barramento fecha
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	wg.Wait()
	bus.Close()
	log.Info("settlement engine stopped")
}

// oddsEvent converte a cotação aplicada para o contrato publicado.
func oddsEvent(u marketstore.Update) events.OddsUpdate {
	q := u.Quote
	return events.OddsUpdate{
		GameID:        u.GameID,
		Market:        string(q.Market),
		HomePrice:     q.HomePrice,
		AwayPrice:     q.AwayPrice,
		OverPrice:     q.OverPrice,
		UnderPrice:    q.UnderPrice,
		Line:          q.Line,
		Suspended:     q.Suspended || q.ProviderSuspended,
		SuspendReason: q.SuspendReason,
		UpdatedAt:     q.UpdatedAt,
	}
}

// gameStateEvent converte o estado de jogo aplicado para o contrato publicado.
func gameStateEvent(u marketstore.Update) events.GameStateUpdate {
	g := u.Game
	return events.GameStateUpdate{
		GameID:    u.GameID,
		Sport:     g.Sport,
		HomeTeam:  g.HomeTeam,
		AwayTeam:  g.AwayTeam,
		Status:    string(g.Status),
		Period:    g.Period,
		Clock:     g.Clock,
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		LastPlay:  g.LastPlay,
		UpdatedAt: g.UpdatedAt,
	}
}
