// Package placement valida e precifica apostas ao vivo contra o estado
// corrente do mercado. A aposta é sempre precificada pela odd que está no
// board agora, nunca pela odd que o cliente enviou; o preço enviado só
// decide se o movimento cabe na tolerância ou precisa ser reofertado.
package placement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
	"github.com/radieske/live-settlement-engine/pkg/oddsmath"
)

// Config ajusta a aceitação.
type Config struct {
	// OddsTolerance é o desvio absoluto permitido, em pontos de odd
	// americana, entre o preço enviado e o preço do board.
	OddsTolerance int
	// FreshnessBound rejeita cotações mais velhas que isto.
	FreshnessBound time.Duration
	// MaxStakeCents limita uma aposta; zero significa sem teto.
	MaxStakeCents int64
}

// PlaceRequest é uma tentativa de aposta. Odds e Line são o que o cliente
// viu; AcceptOddsChanges leva o preço do board mesmo quando ele se moveu
// além da tolerância.
type PlaceRequest struct {
	UserID            string
	GameID            string
	Market            marketstore.Market
	Selection         marketstore.Selection
	Line              float64
	Odds              int
	StakeCents        int64
	AcceptOddsChanges bool
}

// Coordinator roda o fluxo de colocação contra o market store e o bet
// store.
type Coordinator struct {
	markets *marketstore.Store
	bets    betstore.Store
	cfg     Config
	log     *zap.Logger
	now     func() time.Time

	// OnPlaced dispara após um insert bem-sucedido. OnRejected conta
	// recusas por código de motivo.
	OnPlaced   func(b betstore.Bet)
	OnRejected func(code string)
}

func New(markets *marketstore.Store, bets betstore.Store, cfg Config, log *zap.Logger) *Coordinator {
	return &Coordinator{
		markets: markets,
		bets:    bets,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// PlaceBet precifica e persiste uma aposta. Falhas retornam um dos erros
// tipados deste pacote e não deixam nada para trás.
func (c *Coordinator) PlaceBet(ctx context.Context, req PlaceRequest) (*betstore.Bet, error) {
	b, err := c.place(ctx, req)
	if err != nil {
		if c.OnRejected != nil {
			c.OnRejected(RejectCode(err))
		}
		c.log.Info("bet rejected",
			zap.String("user_id", req.UserID),
			zap.String("game_id", req.GameID),
			zap.String("market", string(req.Market)),
			zap.String("reason", RejectCode(err)),
			zap.Error(err))
		return nil, err
	}

	c.log.Info("bet placed",
		zap.String("bet_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("game_id", b.GameID),
		zap.String("market", string(b.Market)),
		zap.String("selection", string(b.Selection)),
		zap.Int("odds", b.OriginalOdds),
		zap.Int64("stake_cents", b.StakeCents),
		zap.Int64("potential_win_cents", b.PotentialWinCents))
	if c.OnPlaced != nil {
		c.OnPlaced(*b)
	}
	return b, nil
}

func (c *Coordinator) place(ctx context.Context, req PlaceRequest) (*betstore.Bet, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	now := c.now()

	snap, ok := c.markets.Snapshot(req.GameID)
	if !ok {
		return nil, fmt.Errorf("%w: game %s is not tracked", ErrGameNotLive, req.GameID)
	}
	quote, current, err := c.priceable(snap, req, now)
	if err != nil {
		return nil, err
	}

	moved := absInt(current-req.Odds) > c.cfg.OddsTolerance
	if lineMarket(req.Market) && req.Line != quote.Line {
		moved = true
	}
	if moved && !req.AcceptOddsChanges {
		return nil, &OddsChangedError{
			ClientOdds:  req.Odds,
			CurrentOdds: current,
			CurrentLine: quote.Line,
		}
	}

	potential, err := oddsmath.PotentialWinCents(req.StakeCents, current)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	bet := &betstore.Bet{
		UserID:            req.UserID,
		GameID:            req.GameID,
		Sport:             snap.Game.Sport,
		Market:            req.Market,
		Selection:         req.Selection,
		Line:              quote.Line,
		OriginalOdds:      current,
		StakeCents:        req.StakeCents,
		PotentialWinCents: potential,
		Status:            betstore.StatusActive,
		PlacedAt:          now,
		PlacedHomeScore:   snap.Game.HomeScore,
		PlacedAwayScore:   snap.Game.AwayScore,
		PlacedGameStatus:  snap.Game.Status,
		PlacedPeriod:      snap.Game.Period,
	}

	// revalida no commit: o mercado pode ter suspendido ou o jogo acabado
	// entre precificar e persistir
	commitNow := c.now()
	snap2, ok := c.markets.Snapshot(req.GameID)
	if !ok {
		return nil, fmt.Errorf("%w: game %s left the board", ErrGameNotLive, req.GameID)
	}
	if _, _, err := c.priceable(snap2, req, commitNow); err != nil {
		return nil, err
	}

	if err := c.bets.CreateBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("persist bet: %w", err)
	}
	return bet, nil
}

// priceable confere as condições de porteira e retorna a cotação e o preço
// do board para a seleção pedida.
func (c *Coordinator) priceable(snap marketstore.Snapshot, req PlaceRequest, now time.Time) (marketstore.Quote, int, error) {
	if !snap.Game.Status.Live() {
		return marketstore.Quote{}, 0, fmt.Errorf("%w: game %s is %s",
			ErrGameNotLive, req.GameID, snap.Game.Status)
	}
	quote, ok := snap.Quotes[req.Market]
	if !ok {
		return marketstore.Quote{}, 0, fmt.Errorf("%w: market %s is not offered on game %s",
			ErrMarketSuspended, req.Market, req.GameID)
	}
	if quote.Suspended {
		return marketstore.Quote{}, 0, fmt.Errorf("%w: %s", ErrMarketSuspended, quote.SuspendReason)
	}
	if c.cfg.FreshnessBound > 0 && !quote.Fresh(now, c.cfg.FreshnessBound) {
		return marketstore.Quote{}, 0, fmt.Errorf("%w: last update %s ago",
			ErrQuoteStale, now.Sub(quote.UpdatedAt).Round(time.Millisecond))
	}
	current, ok := quote.Price(req.Selection)
	if !ok {
		return marketstore.Quote{}, 0, fmt.Errorf("%w: no price for selection %s",
			ErrMarketSuspended, req.Selection)
	}
	return quote, current, nil
}

func (c *Coordinator) validate(req PlaceRequest) error {
	switch {
	case req.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	case req.GameID == "":
		return fmt.Errorf("%w: game_id is required", ErrInvalidRequest)
	case !req.Selection.ValidFor(req.Market):
		return fmt.Errorf("%w: selection %q is not valid for market %q",
			ErrInvalidRequest, req.Selection, req.Market)
	case req.StakeCents <= 0:
		return fmt.Errorf("%w: stake must be positive", ErrInvalidRequest)
	case c.cfg.MaxStakeCents > 0 && req.StakeCents > c.cfg.MaxStakeCents:
		return fmt.Errorf("%w: stake %d exceeds the %d cap",
			ErrInvalidRequest, req.StakeCents, c.cfg.MaxStakeCents)
	case !oddsmath.ValidPrice(req.Odds):
		return fmt.Errorf("%w: %d is not a valid American price", ErrInvalidRequest, req.Odds)
	}
	return nil
}

func lineMarket(m marketstore.Market) bool {
	return m == marketstore.MarketSpread || m == marketstore.MarketTotal
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
