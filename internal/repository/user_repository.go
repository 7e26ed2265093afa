package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `id, username, COALESCE(email, ''), role, level, experience,
	streak_current, streak_longest, streak_last_activity,
	points_earned, tasks_completed, complaints_submitted, created_at`

// maxUsernameLength matches users.username VARCHAR(50).
const maxUsernameLength = 50

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Provision inserts a row for the actor unless one already exists. Rows
// created by the auth subsystem are left untouched.
func (r *UserRepository) Provision(ctx context.Context, tx *sql.Tx, actor model.Actor) error {
	username := truncateRunes(strings.TrimSpace(actor.Username), maxUsernameLength)
	if username == "" {
		username = actor.UserID.String()[:8]
	}
	role := actor.Role
	if !role.Valid() {
		role = model.RoleUser
	}

	query := `
		INSERT INTO users (id, username, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, actor.UserID, username, role); err != nil {
		return fmt.Errorf("provision user: %w", err)
	}
	return nil
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("user", id)
		}
		return nil, err
	}
	return u, nil
}

// TopByPoints ranks users by points, ties broken by earliest account.
func (r *UserRepository) TopByPoints(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `
		SELECT id, username, points_earned, level
		FROM users
		ORDER BY points_earned DESC, created_at ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points, &e.Level); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Usernames resolves display names for the given ids.
func (r *UserRepository) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]UserBrief, error) {
	result := make(map[uuid.UUID]UserBrief, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, username, level FROM users WHERE id = ANY($1::uuid[])`, pq.Array(strs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var b UserBrief
		if err := rows.Scan(&id, &b.Username, &b.Level); err != nil {
			return nil, err
		}
		result[id] = b
	}
	return result, rows.Err()
}

// UserBrief is the display part of a user row.
type UserBrief struct {
	Username string
	Level    int
}

// RewardHistory lists the user's most recent ledger entries.
func (r *UserRepository) RewardHistory(ctx context.Context, userID uuid.UUID, limit int) ([]model.RewardEntry, error) {
	query := `
		SELECT id, user_id, source_type, source_id, points, counter, created_at
		FROM reward_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.RewardEntry{}
	for rows.Next() {
		var e model.RewardEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Source, &e.SourceID, &e.Points, &e.Counter, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanUser(row scanner) (*model.User, error) {
	u := &model.User{}
	var lastActivity sql.NullTime
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Role,
		&u.Level,
		&u.Experience,
		&u.Streak.Current,
		&u.Streak.Longest,
		&lastActivity,
		&u.Stats.PointsEarned,
		&u.Stats.TasksCompleted,
		&u.Stats.ComplaintsSubmitted,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		at := lastActivity.Time
		u.Streak.LastActivity = &at
	}
	return u, nil
}
