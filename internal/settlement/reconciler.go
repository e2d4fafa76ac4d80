// Package settlement roda o laço de reconciliação em segundo plano que
// avalia apostas ACTIVE em jogos finalizados e move cada uma pela sua única
// saída de ACTIVE. Toda transição passa pelo compare-and-set do store, então
// uma execução que disputa com um cash-out (ou com outra execução) perde de
// forma limpa e segue adiante.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/gateway"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// Config é o ajuste do agendador, alterável em tempo de execução via
// UpdateConfig.
type Config struct {
	Interval             time.Duration
	MaxRetries           int
	RetryBackoffBase     time.Duration
	MaxConsecutiveErrors int
	Quiet                QuietWindow
	SettleGameAge        time.Duration
	RunTimeout           time.Duration
}

// ResultFetcher é a fatia do gateway pela qual o reconciliador busca
// placares finais.
type ResultFetcher interface {
	FetchResult(ctx context.Context, sport, gameID string) (*gateway.FinalResult, error)
}

// Reconciler é dono da tarefa de verificação. Roda uma instância por
// processo; a guarda RUNNING em task serializa execuções agendadas e
// manuais.
type Reconciler struct {
	bets    betstore.Store
	markets *marketstore.Store
	results ResultFetcher
	log     *zap.Logger
	task    *task

	mu  sync.Mutex
	cfg Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// OnBetSettled dispara após cada transição bem-sucedida com a aposta
	// atualizada. OnCASConflict conta transições perdidas para um escritor
	// concorrente.
	OnBetSettled     func(b betstore.Bet)
	OnCASConflict    func()
	OnBreakerTripped func()
}

func New(bets betstore.Store, markets *marketstore.Store, results ResultFetcher, cfg Config, log *zap.Logger) *Reconciler {
	return &Reconciler{
		bets:    bets,
		markets: markets,
		results: results,
		log:     log,
		task:    newTask(),
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run conduz a verificação agendada até o ctx ser cancelado. Execuções que
// caem dentro da janela de silêncio são puladas; uma execução já em
// andamento (um disparo manual, por exemplo) torna o tick um no-op.
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Info("settlement reconciler started",
		zap.Duration("interval", r.config().Interval))
	for {
		d := r.config().Interval
		r.task.setNextRun(r.now().Add(d))
		timer := time.NewTimer(d)

		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("settlement reconciler stopped")
			return
		case <-timer.C:
			if r.config().Quiet.Contains(r.now()) {
				r.log.Debug("inside quiet window, skipping scheduled run")
				continue
			}
			if err := r.RunNow(ctx); err != nil &&
				(errors.Is(err, ErrRunInProgress) || errors.Is(err, ErrTaskDisabled)) {
				r.log.Debug("scheduled run skipped", zap.Error(err))
			}
		}
	}
}

// RunNow executa uma verificação de forma síncrona. Ignora a janela de
// silêncio, mas ainda recusa enquanto outra execução está ativa ou o breaker
// está aberto. Falhas são registradas na tarefa antes de retornar.
func (r *Reconciler) RunNow(ctx context.Context) error {
	started := r.now()
	if err := r.task.tryBegin(started); err != nil {
		return err
	}
	cfg := r.config()

	runCtx := ctx
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	verified, settled, err := r.runWithRetries(runCtx, cfg)
	if err != nil {
		tripped := r.task.fail(err, cfg.MaxConsecutiveErrors)
		r.log.Error("verification run failed",
			zap.Int("bets_verified", verified),
			zap.Int("bets_settled", settled),
			zap.Error(err))
		if tripped {
			r.log.Error("verification task disabled after repeated failures, waiting for operator re-enable",
				zap.Int("consecutive_errors", cfg.MaxConsecutiveErrors))
			if r.OnBreakerTripped != nil {
				r.OnBreakerTripped()
			}
		}
		return err
	}

	r.task.complete(verified, settled)
	r.log.Info("verification run completed",
		zap.Int("bets_verified", verified),
		zap.Int("bets_settled", settled),
		zap.Duration("took", r.now().Sub(started)))
	return nil
}

// runWithRetries repete o passe inteiro em falha transitória, esperando
// base*tentativa entre tentativas. Falha de autenticação e cancelamento de
// contexto são finais.
func (r *Reconciler) runWithRetries(ctx context.Context, cfg Config) (verified, settled int, err error) {
	sched := retrySchedule{base: cfg.RetryBackoffBase, maxRetries: cfg.MaxRetries}
	for attempt := 0; ; attempt++ {
		verified, settled, err = r.verify(ctx)
		if err == nil {
			return verified, settled, nil
		}
		if errors.Is(err, gateway.ErrUnauthorized) || ctx.Err() != nil || attempt >= sched.maxRetries {
			return verified, settled, err
		}
		wait := sched.waitFor(attempt + 1)
		r.log.Warn("verification attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			return verified, settled, err
		}
	}
}

// verify é um passe completo: carrega as apostas candidatas, agrupa por
// jogo e avalia cada jogo que tem resultado final. Um jogo que falha não
// bloqueia os demais; seu erro entra no erro da execução depois que todos
// os grupos tiveram sua vez.
func (r *Reconciler) verify(ctx context.Context) (verified, settled int, err error) {
	cfg := r.config()
	cutoff := r.now().Add(-cfg.SettleGameAge)

	bets, err := r.bets.FindActiveForFinalizedGames(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("find active bets: %w", err)
	}
	if len(bets) == 0 {
		return 0, 0, nil
	}

	var runErr error
	for _, group := range groupByGame(bets) {
		n, gErr := r.reconcileGame(ctx, group)
		verified += len(group)
		settled += n
		if gErr != nil {
			runErr = errors.Join(runErr, gErr)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return verified, settled, runErr
}

// reconcileGame avalia as apostas de um jogo contra o resultado final.
// Jogos que o provedor ainda lista em andamento ficam para a próxima
// execução.
func (r *Reconciler) reconcileGame(ctx context.Context, group []*betstore.Bet) (settled int, err error) {
	gameID, sport := group[0].GameID, group[0].Sport

	res, err := r.finalFor(ctx, gameID, sport)
	if err != nil {
		return 0, err
	}
	if res == nil {
		r.log.Debug("game has no final result yet",
			zap.String("game_id", gameID),
			zap.Int("bets_waiting", len(group)))
		return 0, nil
	}

	void := res.Status == marketstore.StatusCancelled
	settledAt := r.now()

	for _, b := range group {
		next, fields := r.gradeBet(b, res, void, settledAt)

		switch casErr := r.bets.CompareAndSetStatus(ctx, b.ID, betstore.StatusActive, next, fields); {
		case casErr == nil:
			settled++
			r.log.Info("bet settled",
				zap.String("bet_id", b.ID),
				zap.String("game_id", gameID),
				zap.String("status", string(next)),
				zap.Int64("result_amount_cents", fields.ResultAmountCents))
			if r.OnBetSettled != nil {
				updated := *b
				updated.Status = next
				updated.ResultAmountCents = fields.ResultAmountCents
				updated.SettledAt = fields.SettledAt
				r.OnBetSettled(updated)
			}
		case errors.Is(casErr, betstore.ErrStatusConflict):
			// outro escritor (cash-out, execução anterior) chegou antes
			r.log.Warn("bet already left ACTIVE, skipping",
				zap.String("bet_id", b.ID),
				zap.Error(casErr))
			if r.OnCASConflict != nil {
				r.OnCASConflict()
			}
		case errors.Is(casErr, betstore.ErrNotFound):
			r.log.Warn("bet disappeared mid-run", zap.String("bet_id", b.ID))
		default:
			return settled, fmt.Errorf("settle bet %s: %w", b.ID, casErr)
		}
	}

	r.archiveAndEvict(ctx, *res)
	return settled, nil
}

func (r *Reconciler) gradeBet(b *betstore.Bet, res *betstore.GameResult, void bool, settledAt time.Time) (betstore.Status, betstore.StatusFields) {
	if void {
		return voidFields(b, settledAt)
	}
	out, err := grade(b, res.HomeScore, res.AwayScore)
	if err != nil {
		r.log.Warn("bet cannot be graded, voiding",
			zap.String("bet_id", b.ID),
			zap.Error(err))
		return voidFields(b, settledAt)
	}
	return resultFields(b, out, settledAt)
}

// finalFor resolve o desfecho com autoridade de um jogo. Cancelamentos são
// conhecidos do nosso próprio arquivo (o feed ao vivo viu a mudança de
// status); placares vêm do endpoint de resultados do provedor, caindo para
// o arquivo quando o provedor já expurgou o jogo.
func (r *Reconciler) finalFor(ctx context.Context, gameID, sport string) (*betstore.GameResult, error) {
	archived, err := r.bets.GetGameResult(ctx, gameID)
	if err != nil && !errors.Is(err, betstore.ErrNotFound) {
		return nil, fmt.Errorf("load archived result for %s: %w", gameID, err)
	}
	if archived != nil && archived.Status == marketstore.StatusCancelled {
		return archived, nil
	}

	res, err := r.results.FetchResult(ctx, sport, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch result for %s: %w", gameID, err)
	}
	if res != nil && res.Completed {
		return &betstore.GameResult{
			GameID:      gameID,
			Sport:       sport,
			HomeTeam:    res.HomeTeam,
			AwayTeam:    res.AwayTeam,
			Status:      marketstore.StatusFinal,
			HomeScore:   res.HomeScore,
			AwayScore:   res.AwayScore,
			FinalizedAt: res.FetchedAt,
		}, nil
	}
	if res == nil && archived != nil && archived.Status == marketstore.StatusFinal {
		return archived, nil
	}
	return nil, nil
}

func (r *Reconciler) archiveAndEvict(ctx context.Context, res betstore.GameResult) {
	if err := r.bets.RecordGameResult(ctx, res); err != nil {
		r.log.Warn("archive game result",
			zap.String("game_id", res.GameID),
			zap.Error(err))
	}
	if r.markets != nil {
		r.markets.Remove(res.GameID)
	}
}

// Stats reporta o estado da tarefa para a API admin e os health checks.
func (r *Reconciler) Stats() Stats {
	return r.task.snapshot(r.config().Interval)
}

// Enable rearma um circuit breaker aberto.
func (r *Reconciler) Enable() {
	r.task.enable()
	r.log.Info("verification task re-enabled")
}

// Disable pausa execuções agendadas e manuais até Enable. Uma execução já
// em voo termina normalmente.
func (r *Reconciler) Disable() {
	r.task.disable()
	r.log.Info("verification task disabled by operator")
}

// Config retorna a configuração atual do agendador.
func (r *Reconciler) Config() Config {
	return r.config()
}

// ConfigUpdate carrega sobrescritas opcionais; campos nil mantêm o valor
// atual.
type ConfigUpdate struct {
	Interval             *time.Duration
	MaxRetries           *int
	RetryBackoffBase     *time.Duration
	MaxConsecutiveErrors *int
	Quiet                *QuietWindow
	SettleGameAge        *time.Duration
	RunTimeout           *time.Duration
}

// UpdateConfig aplica o patch e retorna a configuração resultante. Um novo
// intervalo vale a partir do tick já armado.
func (r *Reconciler) UpdateConfig(u ConfigUpdate) (Config, error) {
	if u.Interval != nil && *u.Interval <= 0 {
		return Config{}, fmt.Errorf("interval must be positive, got %s", *u.Interval)
	}
	if u.MaxRetries != nil && *u.MaxRetries < 0 {
		return Config{}, fmt.Errorf("max_retries must be >= 0, got %d", *u.MaxRetries)
	}
	if u.RetryBackoffBase != nil && *u.RetryBackoffBase < 0 {
		return Config{}, fmt.Errorf("retry_backoff_base must be >= 0, got %s", *u.RetryBackoffBase)
	}
	if u.MaxConsecutiveErrors != nil && *u.MaxConsecutiveErrors < 1 {
		return Config{}, fmt.Errorf("max_consecutive_errors must be >= 1, got %d", *u.MaxConsecutiveErrors)
	}
	if u.SettleGameAge != nil && *u.SettleGameAge < 0 {
		return Config{}, fmt.Errorf("settle_game_age must be >= 0, got %s", *u.SettleGameAge)
	}
	if u.RunTimeout != nil && *u.RunTimeout < 0 {
		return Config{}, fmt.Errorf("run_timeout must be >= 0, got %s", *u.RunTimeout)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Interval != nil {
		r.cfg.Interval = *u.Interval
	}
	if u.MaxRetries != nil {
		r.cfg.MaxRetries = *u.MaxRetries
	}
	if u.RetryBackoffBase != nil {
		r.cfg.RetryBackoffBase = *u.RetryBackoffBase
	}
	if u.MaxConsecutiveErrors != nil {
		r.cfg.MaxConsecutiveErrors = *u.MaxConsecutiveErrors
	}
	if u.Quiet != nil {
		r.cfg.Quiet = *u.Quiet
	}
	if u.SettleGameAge != nil {
		r.cfg.SettleGameAge = *u.SettleGameAge
	}
	if u.RunTimeout != nil {
		r.cfg.RunTimeout = *u.RunTimeout
	}
	r.log.Info("scheduler config updated",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("max_retries", r.cfg.MaxRetries),
		zap.Duration("retry_backoff_base", r.cfg.RetryBackoffBase),
		zap.Int("max_consecutive_errors", r.cfg.MaxConsecutiveErrors))
	return r.cfg, nil
}

func (r *Reconciler) config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func groupByGame(bets []*betstore.Bet) [][]*betstore.Bet {
	idx := make(map[string]int, len(bets))
	var groups [][]*betstore.Bet
	for _, b := range bets {
		i, ok := idx[b.GameID]
		if !ok {
			i = len(groups)
			idx[b.GameID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], b)
	}
	return groups
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
