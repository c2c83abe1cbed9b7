package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyduel/keyduel/go/internal/models"
	"github.com/keyduel/keyduel/go/internal/sqlutil"
)

// InitialCoins is the balance granted when a wallet is first created.
const InitialCoins = 10

// ErrInsufficientFunds is returned when a debit exceeds the wallet balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Repository persists wallets and wager escrows.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateWallet fetches the identity's wallet, creating it with the
// initial balance on first touch.
func (r *Repository) GetOrCreateWallet(ctx context.Context, identityID uuid.UUID) (*models.Wallet, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO wallets (identity_id, coins, current_streak)
		VALUES ($1, $2, 0)
		ON CONFLICT (identity_id) DO UPDATE SET identity_id = EXCLUDED.identity_id
		RETURNING identity_id, coins, current_streak, last_play_date, updated_at`,
		identityID, InitialCoins,
	)
	return scanWallet(row)
}

// HoldEscrow debits the wallet and records an escrow row for the contest, in
// one transaction. Fails without side effects when the balance is short.
func (r *Repository) HoldEscrow(ctx context.Context, contestID, identityID uuid.UUID, amount int) error {
	return sqlutil.Run(ctx, r.db, bindTx, func(q *txQueries) error {
		res, err := q.tx.ExecContext(ctx, `
			UPDATE wallets
			SET coins = coins - $2, updated_at = NOW()
			WHERE identity_id = $1 AND coins >= $2`,
			identityID, amount,
		)
		if err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("wallet %s: %w", identityID, ErrInsufficientFunds)
		}

		_, err = q.tx.ExecContext(ctx, `
			INSERT INTO escrows (contest_id, identity_id, amount, state)
			VALUES ($1, $2, $3, 'HELD')`,
			contestID, identityID, amount,
		)
		if err != nil {
			return fmt.Errorf("failed to record escrow: %w", err)
		}
		return nil
	})
}

// ReleaseToWinner releases every held escrow of the contest and credits the
// pooled amount to the winner.
func (r *Repository) ReleaseToWinner(ctx context.Context, contestID, winnerID uuid.UUID) error {
	return sqlutil.Run(ctx, r.db, bindTx, func(q *txQueries) error {
		var pool sql.NullInt64
		err := q.tx.QueryRowContext(ctx, `
			SELECT SUM(amount) FROM escrows
			WHERE contest_id = $1 AND state = 'HELD'`,
			contestID,
		).Scan(&pool)
		if err != nil {
			return fmt.Errorf("failed to sum escrows: %w", err)
		}
		if !pool.Valid || pool.Int64 == 0 {
			return nil
		}

		_, err = q.tx.ExecContext(ctx, `
			UPDATE escrows SET state = 'RELEASED', resolved_at = NOW()
			WHERE contest_id = $1 AND state = 'HELD'`,
			contestID,
		)
		if err != nil {
			return fmt.Errorf("failed to release escrows: %w", err)
		}

		_, err = q.tx.ExecContext(ctx, `
			UPDATE wallets SET coins = coins + $2, updated_at = NOW()
			WHERE identity_id = $1`,
			winnerID, pool.Int64,
		)
		if err != nil {
			return fmt.Errorf("failed to credit winner: %w", err)
		}
		return nil
	})
}

// RefundAll returns every held escrow of the contest to its owner.
func (r *Repository) RefundAll(ctx context.Context, contestID uuid.UUID) error {
	return sqlutil.Run(ctx, r.db, bindTx, func(q *txQueries) error {
		rows, err := q.tx.QueryContext(ctx, `
			UPDATE escrows SET state = 'REFUNDED', resolved_at = NOW()
			WHERE contest_id = $1 AND state = 'HELD'
			RETURNING identity_id, amount`,
			contestID,
		)
		if err != nil {
			return fmt.Errorf("failed to refund escrows: %w", err)
		}
		defer rows.Close()

		type refund struct {
			identityID uuid.UUID
			amount     int
		}
		var refunds []refund
		for rows.Next() {
			var rf refund
			if err := rows.Scan(&rf.identityID, &rf.amount); err != nil {
				return fmt.Errorf("failed to scan refund: %w", err)
			}
			refunds = append(refunds, rf)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, rf := range refunds {
			_, err := q.tx.ExecContext(ctx, `
				UPDATE wallets SET coins = coins + $2, updated_at = NOW()
				WHERE identity_id = $1`,
				rf.identityID, rf.amount,
			)
			if err != nil {
				return fmt.Errorf("failed to credit refund: %w", err)
			}
		}
		return nil
	})
}

// RecordDailyPlay bumps the identity's streak for today and credits the
// streak bonus. Playing twice in a day is a no-op; a missed day resets the
// streak to one.
func (r *Repository) RecordDailyPlay(ctx context.Context, identityID uuid.UUID, today time.Time) (*models.Wallet, error) {
	day := today.UTC().Truncate(24 * time.Hour)

	wallet, err := r.GetOrCreateWallet(ctx, identityID)
	if err != nil {
		return nil, err
	}

	streak := 1
	if wallet.LastPlayDate != nil {
		last := wallet.LastPlayDate.UTC().Truncate(24 * time.Hour)
		switch {
		case last.Equal(day):
			return wallet, nil
		case day.Sub(last) == 24*time.Hour:
			streak = wallet.CurrentStreak + 1
		}
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE wallets
		SET coins = coins + $2, current_streak = $3, last_play_date = $4, updated_at = NOW()
		WHERE identity_id = $1
		RETURNING identity_id, coins, current_streak, last_play_date, updated_at`,
		identityID, StreakBonus(streak), streak, day,
	)
	return scanWallet(row)
}

func scanWallet(row *sql.Row) (*models.Wallet, error) {
	var (
		w        models.Wallet
		lastPlay sql.NullTime
	)
	if err := row.Scan(&w.IdentityID, &w.Coins, &w.CurrentStreak, &lastPlay, &w.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	w.LastPlayDate = sqlutil.FromSqlTime(lastPlay)
	return &w, nil
}

// txQueries binds a transaction for sqlutil.Run.
type txQueries struct {
	tx *sql.Tx
}

func bindTx(tx *sql.Tx) *txQueries {
	return &txQueries{tx: tx}
}
