package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"
	"prakriti-service/internal/scoring"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const complaintColumns = `id, title, description, category, severity, priority, status,
	location_lat, location_lng, address, city, state, pincode, landmark, images, reported_by,
	assigned_department, assigned_officer, assigned_at, government_response,
	reward_points, reward_awarded, reward_awarded_at,
	feedback_rating, feedback_comment, feedback_submitted_at, created_at, updated_at`

type ComplaintRepository struct {
	db *sql.DB
}

func NewComplaintRepository(db *sql.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func (r *ComplaintRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// Create inserts the complaint and its initial timeline.
func (r *ComplaintRepository) Create(ctx context.Context, tx *sql.Tx, c *model.Complaint) error {
	gov, err := json.Marshal(c.GovernmentResponse)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO complaints (id, title, description, category, severity, priority, status,
			location_lat, location_lng, address, city, state, pincode, landmark, images, reported_by,
			government_response, reward_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err = tx.ExecContext(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		c.Category,
		c.Severity,
		c.Priority,
		c.Status,
		c.Location.Lat,
		c.Location.Lng,
		nullString(c.Location.Address),
		nullString(c.Location.City),
		nullString(c.Location.State),
		nullString(c.Location.Pincode),
		nullString(c.Location.Landmark),
		pq.Array(c.Images),
		c.ReportedBy,
		gov,
		c.Reward.Points,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}

	for _, entry := range c.Timeline {
		if err := r.AppendTimeline(ctx, tx, c.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *ComplaintRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Complaint, error) {
	return r.findByID(ctx, r.db, id, false)
}

// FindByIDForUpdate loads the complaint and locks its row until tx ends.
func (r *ComplaintRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Complaint, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *ComplaintRepository) findByID(ctx context.Context, q querier, id uuid.UUID, lock bool) (*model.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	c, err := scanComplaint(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("complaint", id)
		}
		return nil, err
	}

	c.Timeline, err = r.timeline(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ComplaintRepository) timeline(ctx context.Context, q querier, complaintID uuid.UUID) ([]model.TimelineEntry, error) {
	query := `
		SELECT id, status, description, updated_by, created_at
		FROM complaint_timeline
		WHERE complaint_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := q.QueryContext(ctx, query, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.TimelineEntry{}
	for rows.Next() {
		var e model.TimelineEntry
		if err := rows.Scan(&e.ID, &e.Status, &e.Description, &e.UpdatedBy, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Update writes the mutable lifecycle fields. Reward columns belong to the
// ledger and are never written here.
func (r *ComplaintRepository) Update(ctx context.Context, tx *sql.Tx, c *model.Complaint) error {
	gov, err := json.Marshal(c.GovernmentResponse)
	if err != nil {
		return err
	}

	var dept sql.NullString
	var officer *uuid.UUID
	var assignedAt sql.NullTime
	if c.AssignedTo != nil {
		dept = nullString(c.AssignedTo.Department)
		officer = c.AssignedTo.Officer
		assignedAt = sql.NullTime{Time: c.AssignedTo.AssignedAt, Valid: true}
	}

	var rating sql.NullInt32
	var comment sql.NullString
	var submittedAt sql.NullTime
	if c.Feedback != nil {
		rating = sql.NullInt32{Int32: int32(c.Feedback.Rating), Valid: true}
		comment = nullString(c.Feedback.Comment)
		submittedAt = sql.NullTime{Time: c.Feedback.SubmittedAt, Valid: true}
	}

	query := `
		UPDATE complaints
		SET status = $2, priority = $3, assigned_department = $4, assigned_officer = $5, assigned_at = $6,
			government_response = $7, feedback_rating = $8, feedback_comment = $9, feedback_submitted_at = $10,
			updated_at = $11
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query,
		c.ID,
		c.Status,
		c.Priority,
		dept,
		officer,
		assignedAt,
		gov,
		rating,
		comment,
		submittedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.NotFound("complaint", c.ID)
	}
	return nil
}

func (r *ComplaintRepository) AppendTimeline(ctx context.Context, tx *sql.Tx, complaintID uuid.UUID, e model.TimelineEntry) error {
	query := `
		INSERT INTO complaint_timeline (id, complaint_id, status, description, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, e.ID, complaintID, e.Status, e.Description, e.UpdatedBy, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	return nil
}

// List returns one page of complaints, newest first, and the filtered total.
// Timelines are not loaded.
func (r *ComplaintRepository) List(ctx context.Context, f model.ComplaintFilter) ([]model.Complaint, int, error) {
	var conds []string
	var args []interface{}

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.ReportedBy != nil {
		args = append(args, *f.ReportedBy)
		conds = append(conds, fmt.Sprintf("reported_by = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(f.Page, f.Limit, 20, 100)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM complaints%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		complaintColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	complaints := []model.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, err
		}
		complaints = append(complaints, *c)
	}
	return complaints, total, rows.Err()
}

func scanComplaint(row scanner) (*model.Complaint, error) {
	c := &model.Complaint{}
	var address, city, state, pincode, landmark, dept sql.NullString
	var officer uuid.NullUUID
	var assignedAt, awardedAt, feedbackAt sql.NullTime
	var rating sql.NullInt32
	var comment sql.NullString
	var gov []byte

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.Severity,
		&c.Priority,
		&c.Status,
		&c.Location.Lat,
		&c.Location.Lng,
		&address,
		&city,
		&state,
		&pincode,
		&landmark,
		pq.Array(&c.Images),
		&c.ReportedBy,
		&dept,
		&officer,
		&assignedAt,
		&gov,
		&c.Reward.Points,
		&c.Reward.Awarded,
		&awardedAt,
		&rating,
		&comment,
		&feedbackAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Location.Address = address.String
	c.Location.City = city.String
	c.Location.State = state.String
	c.Location.Pincode = pincode.String
	c.Location.Landmark = landmark.String
	if c.Images == nil {
		c.Images = []string{}
	}

	if dept.Valid {
		c.AssignedTo = &model.Assignment{Department: dept.String, AssignedAt: assignedAt.Time}
		if officer.Valid {
			id := officer.UUID
			c.AssignedTo.Officer = &id
		}
	}

	if len(gov) > 0 {
		if err := json.Unmarshal(gov, &c.GovernmentResponse); err != nil {
			return nil, fmt.Errorf("decode government response: %w", err)
		}
	}

	if awardedAt.Valid {
		at := awardedAt.Time
		c.Reward.AwardedAt = &at
	}

	if rating.Valid {
		c.Feedback = &model.Feedback{
			Rating:      int(rating.Int32),
			Comment:     comment.String,
			SubmittedAt: feedbackAt.Time,
		}
	}

	// priority is a derived cache; trust the source fields
	c.Priority = scoring.Priority(c.Severity, c.Category)
	return c, nil
}
