package cashout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/betstore"
	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

// OfferChangedError rejeita um aceite cujo valor derivou demais da oferta
// ao vivo. Carrega a oferta atual para quem chamou poder reapresentar.
type OfferChangedError struct {
	PresentedCents int64
	Current        Offer
}

func (e *OfferChangedError) Error() string {
	return fmt.Sprintf("offer changed: presented %d, current %d",
		e.PresentedCents, e.Current.OfferCents)
}

// Config ajusta o aceite por cima do modelo de precificação.
type Config struct {
	Pricer PricerConfig
	// AcceptDriftCents é o quanto o valor apresentado pode distar da oferta
	// recalculada e ainda executar.
	AcceptDriftCents int64
}

// Service cota e executa cash-outs.
type Service struct {
	markets *marketstore.Store
	bets    betstore.Store
	pricer  Pricer
	cfg     Config
	log     *zap.Logger
	now     func() time.Time

	// OnCashedOut dispara após uma transição bem-sucedida com a aposta
	// atualizada e a oferta executada.
	OnCashedOut func(b betstore.Bet, offer Offer)
}

func NewService(markets *marketstore.Store, bets betstore.Store, cfg Config, log *zap.Logger) *Service {
	return &Service{
		markets: markets,
		bets:    bets,
		pricer:  NewPricer(cfg.Pricer),
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// QuoteBet precifica uma saída antecipada da aposta como ela está agora.
func (s *Service) QuoteBet(ctx context.Context, betID string) (Offer, error) {
	b, err := s.bets.GetBet(ctx, betID)
	if err != nil {
		return Offer{}, err
	}
	return s.quote(b)
}

// Accept executa um cash-out pela oferta atual, desde que o valor que quem
// chamou viu esteja dentro da tolerância de deriva. A transição ACTIVE →
// CASHED_OUT usa o compare-and-set do store, então uma liquidação em disputa
// nunca paga em dobro.
func (s *Service) Accept(ctx context.Context, betID string, presentedCents int64) (*betstore.Bet, error) {
	b, err := s.bets.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	offer, err := s.quote(b)
	if err != nil {
		return nil, err
	}

	if drift := absInt64(offer.OfferCents - presentedCents); drift > s.cfg.AcceptDriftCents {
		s.log.Info("cash-out re-offered",
			zap.String("bet_id", betID),
			zap.Int64("presented_cents", presentedCents),
			zap.Int64("current_cents", offer.OfferCents))
		return nil, &OfferChangedError{PresentedCents: presentedCents, Current: offer}
	}

	fields := betstore.StatusFields{
		CashedOutCents: offer.OfferCents,
		SettledAt:      offer.QuotedAt,
	}
	err = s.bets.CompareAndSetStatus(ctx, betID, betstore.StatusActive, betstore.StatusCashedOut, fields)
	if err != nil {
		if errors.Is(err, betstore.ErrStatusConflict) {
			s.log.Warn("cash-out lost the transition race",
				zap.String("bet_id", betID),
				zap.Error(err))
		}
		return nil, err
	}

	updated := *b
	updated.Status = betstore.StatusCashedOut
	updated.CashedOutCents = offer.OfferCents
	updated.SettledAt = offer.QuotedAt

	s.log.Info("bet cashed out",
		zap.String("bet_id", betID),
		zap.String("game_id", b.GameID),
		zap.Int64("cashed_out_cents", offer.OfferCents),
		zap.Int64("stake_cents", b.StakeCents))
	if s.OnCashedOut != nil {
		s.OnCashedOut(updated, offer)
	}
	return &updated, nil
}

func (s *Service) quote(b *betstore.Bet) (Offer, error) {
	var snapPtr *marketstore.Snapshot
	if snap, ok := s.markets.Snapshot(b.GameID); ok {
		snapPtr = &snap
	}
	return s.pricer.Quote(b, snapPtr, s.now())
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
