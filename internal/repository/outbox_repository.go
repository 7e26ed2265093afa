package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxOutboxRetries is the number of failed publishes after which a message
// is parked as failed.
const MaxOutboxRetries = 5

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxMessage is one staged domain event awaiting the relay.
type OutboxMessage struct {
	ID          uuid.UUID       `json:"id"`
	RoutingKey  string          `json:"routing_key"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	RetryCount  int             `json:"retry_count"`
	LastError   *string         `json:"last_error,omitempty"`
	Status      OutboxStatus    `json:"status"`
}

const (
	sqlOutboxInsert = `INSERT INTO outbox_messages (id, routing_key, payload, status) VALUES ($1, $2, $3, 'pending')`

	sqlOutboxClaim = `SELECT id, routing_key, payload, created_at, retry_count, last_error, status
FROM outbox_messages
WHERE status = 'pending'
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

	sqlOutboxPublished = `UPDATE outbox_messages SET status = 'published', published_at = NOW() WHERE id = $1`

	// A message reaching the retry cap on this attempt is parked, never retried.
	sqlOutboxFailed = `UPDATE outbox_messages
SET retry_count = retry_count + 1,
    last_error = $2,
    status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
WHERE id = $1`

	sqlOutboxPurge = `DELETE FROM outbox_messages WHERE status = 'published' AND published_at < $1`

	sqlOutboxStats = `SELECT status, COUNT(*) FROM outbox_messages GROUP BY status`
)

type OutboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db, now: time.Now}
}

func (r *OutboxRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// CreateInTransaction stages an event so it commits or rolls back together
// with the lifecycle change that produced it.
func (r *OutboxRepository) CreateInTransaction(ctx context.Context, tx *sql.Tx, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, sqlOutboxInsert, uuid.New(), routingKey, body)
	return err
}

// ClaimPending locks the oldest pending messages for tx, skipping rows already
// held by another relay.
func (r *OutboxRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]OutboxMessage, error) {
	rows, err := tx.QueryContext(ctx, sqlOutboxClaim, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, m)
	}
	return claimed, rows.Err()
}

func scanOutboxMessage(rows *sql.Rows) (OutboxMessage, error) {
	var (
		m       OutboxMessage
		lastErr sql.NullString
	)
	if err := rows.Scan(&m.ID, &m.RoutingKey, &m.Payload, &m.CreatedAt, &m.RetryCount, &lastErr, &m.Status); err != nil {
		return OutboxMessage{}, err
	}
	if lastErr.Valid {
		m.LastError = &lastErr.String
	}
	return m, nil
}

func (r *OutboxRepository) MarkAsPublished(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, sqlOutboxPublished, id)
	return err
}

// MarkAsFailed records a publish error and parks the message once it has
// failed MaxOutboxRetries times.
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, errMsg string) error {
	_, err := tx.ExecContext(ctx, sqlOutboxFailed, id, errMsg, MaxOutboxRetries)
	return err
}

// DeletePublished purges relayed messages older than the retention window and
// reports how many rows went.
func (r *OutboxRepository) DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, sqlOutboxPurge, r.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetStats counts messages per status. Every status is present in the result,
// zero when no row carries it.
func (r *OutboxRepository) GetStats(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, sqlOutboxStats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int, 3)
	for _, s := range []OutboxStatus{OutboxPending, OutboxPublished, OutboxFailed} {
		stats[string(s)] = 0
	}
	for rows.Next() {
		var (
			status OutboxStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[string(status)] = n
	}
	return stats, rows.Err()
}
