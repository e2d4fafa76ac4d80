package betstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Postgres implementa Store sobre database/sql. Transições de status e suas
// linhas de auditoria compartilham uma transação; o compare-and-set é um
// UPDATE condicional verificado via RowsAffected.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna um repositório de apostas sobre Postgres.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) CreateBet(ctx context.Context, b *Bet) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets
		  (id, user_id, game_id, sport, market, selection, line, original_odds,
		   stake_cents, potential_win_cents, status, placed_at,
		   placed_home_score, placed_away_score, placed_game_status, placed_period)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		b.ID, b.UserID, b.GameID, b.Sport, b.Market, b.Selection, b.Line, b.OriginalOdds,
		b.StakeCents, b.PotentialWinCents, b.Status, b.PlacedAt,
		b.PlacedHomeScore, b.PlacedAwayScore, b.PlacedGameStatus, b.PlacedPeriod,
	)
	return err
}

func (p *Postgres) GetBet(ctx context.Context, id string) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, game_id, sport, market, selection, line, original_odds,
		       stake_cents, potential_win_cents, status, placed_at,
		       placed_home_score, placed_away_score, placed_game_status, placed_period,
		       settled_at, result_amount_cents, cashed_out_cents
		FROM bets WHERE id=$1`, id)

	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (p *Postgres) CompareAndSetStatus(ctx context.Context, id string, expected, next Status, fields StatusFields) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	settledAt := sql.NullTime{Time: fields.SettledAt, Valid: !fields.SettledAt.IsZero()}
	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET status=$1, result_amount_cents=$2, cashed_out_cents=$3, settled_at=$4
		WHERE id=$5 AND status=$6`,
		next, fields.ResultAmountCents, fields.CashedOutCents, settledAt, id, expected,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM bets WHERE id=$1`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: bet %s is %s, expected %s", ErrStatusConflict, id, current, expected)
	}

	amount := fields.ResultAmountCents
	if next == StatusCashedOut {
		amount = fields.CashedOutCents
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bet_transitions (bet_id, from_status, to_status, amount_cents)
		VALUES ($1,$2,$3,$4)`,
		id, expected, next, amount,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) FindActiveForFinalizedGames(ctx context.Context, placedBefore time.Time) ([]*Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.game_id, b.sport, b.market, b.selection, b.line, b.original_odds,
		       b.stake_cents, b.potential_win_cents, b.status, b.placed_at,
		       b.placed_home_score, b.placed_away_score, b.placed_game_status, b.placed_period,
		       b.settled_at, b.result_amount_cents, b.cashed_out_cents
		FROM bets b
		LEFT JOIN game_results g ON g.game_id = b.game_id
		WHERE b.status = $1 AND (g.game_id IS NOT NULL OR b.placed_at < $2)
		ORDER BY b.game_id, b.placed_at`,
		StatusActive, placedBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []*Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (p *Postgres) RecordGameResult(ctx context.Context, res GameResult) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO game_results
		  (game_id, sport, home_team, away_team, status, home_score, away_score, finalized_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (game_id) DO UPDATE SET
		  status       = EXCLUDED.status,
		  home_score   = EXCLUDED.home_score,
		  away_score   = EXCLUDED.away_score,
		  finalized_at = EXCLUDED.finalized_at`,
		res.GameID, res.Sport, res.HomeTeam, res.AwayTeam, res.Status, res.HomeScore, res.AwayScore, res.FinalizedAt,
	)
	return err
}

func (p *Postgres) GetGameResult(ctx context.Context, gameID string) (*GameResult, error) {
	var res GameResult
	err := p.db.QueryRowContext(ctx, `
		SELECT game_id, sport, home_team, away_team, status, home_score, away_score, finalized_at
		FROM game_results WHERE game_id=$1`, gameID,
	).Scan(&res.GameID, &res.Sport, &res.HomeTeam, &res.AwayTeam, &res.Status, &res.HomeScore, &res.AwayScore, &res.FinalizedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(row rowScanner) (*Bet, error) {
	var b Bet
	var settledAt sql.NullTime
	if err := row.Scan(
		&b.ID, &b.UserID, &b.GameID, &b.Sport, &b.Market, &b.Selection, &b.Line, &b.OriginalOdds,
		&b.StakeCents, &b.PotentialWinCents, &b.Status, &b.PlacedAt,
		&b.PlacedHomeScore, &b.PlacedAwayScore, &b.PlacedGameStatus, &b.PlacedPeriod,
		&settledAt, &b.ResultAmountCents, &b.CashedOutCents,
	); err != nil {
		return nil, err
	}
	if settledAt.Valid {
		b.SettledAt = settledAt.Time
	}
	return &b, nil
}
