// Package ledger credits users for qualifying lifecycle events.
//
// Every award first claims the source entity's one-time flag with a
// conditional update. Only the caller whose claim affected a row goes on to
// write the ledger entry and bump the user's counters, so concurrent
// attempts on the same entity credit exactly once. All writes go through the
// caller's transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"
	"prakriti-service/internal/scoring"

	"github.com/google/uuid"
)

// ErrAlreadyAwarded is returned when the source entity's award was claimed
// earlier. Nothing is written in that case.
var ErrAlreadyAwarded = errors.New("reward already awarded")

const (
	counterComplaints = "complaints_submitted"
	counterTasks      = "tasks_completed"
)

// Execer is satisfied by *sql.Tx and *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Ledger struct {
	now func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

// WithClock returns a ledger that stamps awards with now().
func WithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

// AwardComplaint credits the reporter of a resolved complaint.
func (l *Ledger) AwardComplaint(ctx context.Context, tx Execer, complaintID, reporterID uuid.UUID, points int) (*model.RewardEntry, error) {
	points = scoring.ComplaintReward(points)
	now := l.now().UTC()

	claimed, err := claim(ctx, tx, `
		UPDATE complaints
		SET reward_awarded = TRUE, reward_awarded_at = $2, reward_points = $3
		WHERE id = $1 AND reward_awarded = FALSE
	`, complaintID, now, points)
	if err != nil {
		return nil, fmt.Errorf("claim complaint reward: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyAwarded
	}

	return l.credit(ctx, tx, model.RewardEntry{
		ID:        uuid.New(),
		UserID:    reporterID,
		Source:    model.SourceComplaint,
		SourceID:  complaintID,
		Points:    points,
		Counter:   counterComplaints,
		CreatedAt: now,
	})
}

// AwardSubmission credits the submitter of a verified task submission.
func (l *Ledger) AwardSubmission(ctx context.Context, tx Execer, submissionID, userID uuid.UUID, points int) (*model.RewardEntry, error) {
	if points <= 0 {
		return nil, apperr.Validation("points", "must be positive")
	}
	now := l.now().UTC()

	claimed, err := claim(ctx, tx, `
		UPDATE task_submissions
		SET rewarded = TRUE, rewarded_at = $2
		WHERE id = $1 AND rewarded = FALSE AND status = 'verified'
	`, submissionID, now)
	if err != nil {
		return nil, fmt.Errorf("claim submission reward: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyAwarded
	}

	return l.credit(ctx, tx, model.RewardEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Source:    model.SourceTaskSubmission,
		SourceID:  submissionID,
		Points:    points,
		Counter:   counterTasks,
		CreatedAt: now,
	})
}

func claim(ctx context.Context, tx Execer, query string, args ...interface{}) (bool, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func (l *Ledger) credit(ctx context.Context, tx Execer, entry model.RewardEntry) (*model.RewardEntry, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO reward_ledger (id, user_id, source_type, source_id, points, counter, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_type, source_id) DO NOTHING
	`, entry.ID, entry.UserID, entry.Source, entry.SourceID, entry.Points, entry.Counter, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrAlreadyAwarded
	}

	// entry.Counter is one of the package constants, never caller input.
	query := fmt.Sprintf(`
		UPDATE users
		SET points_earned = points_earned + $2, experience = experience + $2, %[1]s = %[1]s + 1
		WHERE id = $1
		RETURNING experience, streak_current, streak_longest, streak_last_activity
	`, entry.Counter)

	var experience int
	var streak model.Streak
	var lastActivity sql.NullTime
	err = tx.QueryRowContext(ctx, query, entry.UserID, entry.Points).
		Scan(&experience, &streak.Current, &streak.Longest, &lastActivity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("user", entry.UserID)
		}
		return nil, fmt.Errorf("credit user: %w", err)
	}
	if lastActivity.Valid {
		at := lastActivity.Time
		streak.LastActivity = &at
	}

	streak = scoring.AdvanceStreak(streak, entry.CreatedAt)
	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET level = $2, streak_current = $3, streak_longest = $4, streak_last_activity = $5
		WHERE id = $1
	`, entry.UserID, scoring.LevelFor(experience), streak.Current, streak.Longest, streak.LastActivity)
	if err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}

	return &entry, nil
}
