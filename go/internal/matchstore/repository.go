package matchstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyduel/keyduel/go/internal/models"
	"github.com/keyduel/keyduel/go/internal/sqlutil"
)

// Repository persists contests and their outcomes.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new match store repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateContest inserts a newly invited contest.
func (r *Repository) CreateContest(ctx context.Context, contest *models.Contest) error {
	settings, err := json.Marshal(contest.Settings)
	if err != nil {
		return fmt.Errorf("marshal contest settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contests (
			id, passage_text, participant_a, participant_b,
			status, wager_amount, settings, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		contest.ID, contest.PassageText, contest.ParticipantA, contest.ParticipantB,
		string(contest.Status), contest.WagerAmount, settings, contest.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contest: %w", err)
	}
	return nil
}

// UpdateContestStatus advances the persisted contest status.
func (r *Repository) UpdateContestStatus(ctx context.Context, id uuid.UUID, status models.ContestStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contests SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update contest status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("contest %s not found", id)
	}
	return nil
}

// RecordOutcome writes the final outcome row and stamps the contest finished,
// in one transaction.
func (r *Repository) RecordOutcome(ctx context.Context, outcome models.MatchOutcome) error {
	resultA, err := json.Marshal(outcome.ResultA)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	resultB, err := json.Marshal(outcome.ResultB)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	return sqlutil.Run(ctx, r.db, bindTx, func(q *txQueries) error {
		_, err := q.tx.ExecContext(ctx, `
			INSERT INTO contest_outcomes (
				contest_id, participant_a, participant_b, status,
				winner_id, won_by_forfeit, wager_amount,
				result_a, result_b, started_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (contest_id) DO NOTHING`,
			outcome.ContestID, outcome.ParticipantA, outcome.ParticipantB, string(outcome.Status),
			sqlutil.ToNullUUID(outcome.WinnerID), outcome.WonByForfeit, outcome.WagerAmount,
			resultA, resultB, sqlutil.ToSqlTime(outcome.StartedAt), sqlutil.ToSqlTime(outcome.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}

		_, err = q.tx.ExecContext(ctx, `
			UPDATE contests
			SET status = $2, winner_id = $3, won_by_forfeit = $4,
			    started_at = $5, finished_at = $6, updated_at = NOW()
			WHERE id = $1`,
			outcome.ContestID, string(outcome.Status),
			sqlutil.ToNullUUID(outcome.WinnerID), outcome.WonByForfeit,
			sqlutil.ToSqlTime(outcome.StartedAt), sqlutil.ToSqlTime(outcome.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to finalize contest: %w", err)
		}
		return nil
	})
}

// GetContest fetches one contest row.
func (r *Repository) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, passage_text, participant_a, participant_b, status,
		       wager_amount, settings, created_at, started_at, finished_at,
		       winner_id, won_by_forfeit
		FROM contests WHERE id = $1`, id)

	var (
		contest    models.Contest
		status     string
		settings   []byte
		startedAt  sql.NullTime
		finishedAt sql.NullTime
		winnerID   uuid.NullUUID
	)
	err := row.Scan(
		&contest.ID, &contest.PassageText, &contest.ParticipantA, &contest.ParticipantB,
		&status, &contest.WagerAmount, &settings, &contest.CreatedAt,
		&startedAt, &finishedAt, &winnerID, &contest.WonByForfeit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}

	contest.Status = models.ContestStatus(status)
	contest.StartedAt = sqlutil.FromSqlTime(startedAt)
	contest.FinishedAt = sqlutil.FromSqlTime(finishedAt)
	contest.WinnerID = sqlutil.FromNullUUID(winnerID)
	if err := json.Unmarshal(settings, &contest.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal contest settings: %w", err)
	}
	return &contest, nil
}

// ListOutcomesForIdentity returns a participant's most recent match results,
// newest first.
func (r *Repository) ListOutcomesForIdentity(ctx context.Context, identityID uuid.UUID, limit int) ([]models.MatchOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT contest_id, participant_a, participant_b, status,
		       winner_id, won_by_forfeit, wager_amount,
		       result_a, result_b, started_at, finished_at
		FROM contest_outcomes
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY finished_at DESC NULLS LAST
		LIMIT $2`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.MatchOutcome
	for rows.Next() {
		var (
			outcome    models.MatchOutcome
			status     string
			winnerID   uuid.NullUUID
			resultA    []byte
			resultB    []byte
			startedAt  sql.NullTime
			finishedAt sql.NullTime
		)
		err := rows.Scan(
			&outcome.ContestID, &outcome.ParticipantA, &outcome.ParticipantB, &status,
			&winnerID, &outcome.WonByForfeit, &outcome.WagerAmount,
			&resultA, &resultB, &startedAt, &finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcome.Status = models.ContestStatus(status)
		outcome.WinnerID = sqlutil.FromNullUUID(winnerID)
		outcome.StartedAt = sqlutil.FromSqlTime(startedAt)
		outcome.FinishedAt = sqlutil.FromSqlTime(finishedAt)
		if err := json.Unmarshal(resultA, &outcome.ResultA); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		if err := json.Unmarshal(resultB, &outcome.ResultB); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

// txQueries binds a transaction for sqlutil.Run.
type txQueries struct {
	tx *sql.Tx
}

func bindTx(tx *sql.Tx) *txQueries {
	return &txQueries{tx: tx}
}
