package repository

import (
	"context"
	"database/sql"
	"fmt"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/geo"
	"prakriti-service/internal/model"
	"prakriti-service/internal/scoring"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const taskColumns = `id, title, description, category, difficulty, points,
	location_lat, location_lng, address, city, state, country,
	required_images, requirements_description, checklist, deadline, is_active, created_by,
	total_submissions, verified_submissions, completion_rate, created_at, updated_at`

const submissionColumns = `id, task_id, user_id, images, description, location_lat, location_lng,
	status, verified_by, verified_at, feedback, rewarded, rewarded_at, submitted_at`

// H3 index column per resolution. Only these names are ever interpolated.
var cellColumns = map[int]string{
	geo.ResolutionCoarse: "h3_r5",
	geo.ResolutionMedium: "h3_r7",
	geo.ResolutionFine:   "h3_r9",
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *TaskRepository) Create(ctx context.Context, tx *sql.Tx, t *model.Task, cells geo.Cells) error {
	checklist := t.Requirements.Checklist
	if checklist == nil {
		checklist = []string{}
	}

	query := `
		INSERT INTO tasks (id, title, description, category, difficulty, points,
			location_lat, location_lng, address, city, state, country, h3_r5, h3_r7, h3_r9,
			required_images, requirements_description, checklist, deadline, is_active, created_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := tx.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Category,
		t.Difficulty,
		t.Points,
		t.Location.Lat,
		t.Location.Lng,
		nullString(t.Location.Address),
		nullString(t.Location.City),
		nullString(t.Location.State),
		t.Location.Country,
		cells.R5,
		cells.R7,
		cells.R9,
		t.Requirements.Images,
		nullString(t.Requirements.Description),
		pq.Array(checklist),
		t.Deadline,
		t.IsActive,
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindByID loads the task with its submissions in submission order.
func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return r.findByID(ctx, r.db, id, false)
}

// FindByIDForUpdate locks the task row, serializing submission writes.
func (r *TaskRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Task, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *TaskRepository) findByID(ctx context.Context, q querier, id uuid.UUID, lock bool) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	t, err := scanTask(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("task", id)
		}
		return nil, err
	}

	t.Submissions, err = r.submissions(ctx, q, id)
	if err != nil {
		return nil, err
	}
	t.Statistics = scoring.StatisticsOf(t.Submissions)
	return t, nil
}

func (r *TaskRepository) submissions(ctx context.Context, q querier, taskID uuid.UUID) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM task_submissions WHERE task_id = $1 ORDER BY submitted_at ASC, id ASC`
	rows, err := q.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// List returns one page of active tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, f model.TaskFilter) ([]model.Task, int, error) {
	where := ` WHERE is_active = TRUE`
	var args []interface{}
	if f.Category != "" {
		args = append(args, f.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(f.Page, f.Limit, 20, 100)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)-1, len(args))

	tasks, err := r.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// FindInCells returns active tasks indexed in any of the given cells.
func (r *TaskRepository) FindInCells(ctx context.Context, resolution int, cells []string, category model.TaskCategory) ([]model.Task, error) {
	column, ok := cellColumns[resolution]
	if !ok {
		return nil, fmt.Errorf("unsupported h3 resolution %d", resolution)
	}

	args := []interface{}{pq.Array(cells)}
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE is_active = TRUE AND %s = ANY($1)`, taskColumns, column)
	if category != "" {
		args = append(args, category)
		query += ` AND category = $2`
	}

	return r.queryTasks(ctx, query, args...)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CreateSubmission relies on UNIQUE(task_id, user_id) to reject a second
// submission that raced past the application check.
func (r *TaskRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	var lat, lng sql.NullFloat64
	if s.Location != nil {
		lat = sql.NullFloat64{Float64: s.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: s.Location.Lng, Valid: true}
	}

	query := `
		INSERT INTO task_submissions (id, task_id, user_id, images, description, location_lat, location_lng, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.ExecContext(ctx, query,
		s.ID,
		s.TaskID,
		s.UserID,
		pq.Array(s.Images),
		nullString(s.Description),
		lat,
		lng,
		s.Status,
		s.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("you have already submitted this task")
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// SettleSubmission writes the verification outcome of a pending submission.
func (r *TaskRepository) SettleSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `
		UPDATE task_submissions
		SET status = $2, feedback = $3, verified_by = $4, verified_at = $5
		WHERE id = $1 AND status = 'pending'
	`
	result, err := tx.ExecContext(ctx, query, s.ID, s.Status, nullString(s.Feedback), s.VerifiedBy, s.VerifiedAt)
	if err != nil {
		return fmt.Errorf("settle submission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.InvalidState("settled", "verify submission")
	}
	return nil
}

// RefreshStatistics recomputes the task's rollup from its submissions.
func (r *TaskRepository) RefreshStatistics(ctx context.Context, q querier, taskID uuid.UUID) (model.Statistics, error) {
	var total, verified int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'verified')
		FROM task_submissions
		WHERE task_id = $1
	`, taskID).Scan(&total, &verified)
	if err != nil {
		return model.Statistics{}, err
	}

	stats := scoring.ComputeStatistics(total, verified)
	result, err := q.ExecContext(ctx, `
		UPDATE tasks
		SET total_submissions = $2, verified_submissions = $3, completion_rate = $4, updated_at = NOW()
		WHERE id = $1
	`, taskID, stats.TotalSubmissions, stats.VerifiedSubmissions, stats.CompletionRate)
	if err != nil {
		return model.Statistics{}, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Statistics{}, err
	}
	if rowsAffected == 0 {
		return model.Statistics{}, apperr.NotFound("task", taskID)
	}
	return stats, nil
}

// RefreshAllStatistics recomputes every task's rollup outside a transaction.
func (r *TaskRepository) RefreshAllStatistics(ctx context.Context) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tasks ORDER BY created_at`)
	if err != nil {
		return 0, err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := r.RefreshStatistics(ctx, r.db, id); err != nil {
			return 0, fmt.Errorf("task %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// RefreshStatisticsFor recomputes one task outside a transaction.
func (r *TaskRepository) RefreshStatisticsFor(ctx context.Context, taskID uuid.UUID) (model.Statistics, error) {
	return r.RefreshStatistics(ctx, r.db, taskID)
}

// FindSubmissionsByUser returns the user's submissions with a task summary each.
func (r *TaskRepository) FindSubmissionsByUser(ctx context.Context, userID uuid.UUID) ([]model.UserSubmission, error) {
	query := `
		SELECT t.id, t.title, t.category, t.points,
			s.id, s.task_id, s.user_id, s.images, s.description, s.location_lat, s.location_lng,
			s.status, s.verified_by, s.verified_at, s.feedback, s.rewarded, s.rewarded_at, s.submitted_at
		FROM task_submissions s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.user_id = $1
		ORDER BY s.submitted_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.UserSubmission{}
	for rows.Next() {
		var us model.UserSubmission
		var description, feedback sql.NullString
		var lat, lng sql.NullFloat64
		var verifiedBy uuid.NullUUID
		var verifiedAt, rewardedAt sql.NullTime

		err := rows.Scan(
			&us.Task.ID,
			&us.Task.Title,
			&us.Task.Category,
			&us.Task.Points,
			&us.Submission.ID,
			&us.Submission.TaskID,
			&us.Submission.UserID,
			pq.Array(&us.Submission.Images),
			&description,
			&lat,
			&lng,
			&us.Submission.Status,
			&verifiedBy,
			&verifiedAt,
			&feedback,
			&us.Submission.Rewarded,
			&rewardedAt,
			&us.Submission.SubmittedAt,
		)
		if err != nil {
			return nil, err
		}
		fillSubmission(&us.Submission, description, feedback, lat, lng, verifiedBy, verifiedAt, rewardedAt)
		result = append(result, us)
	}
	return result, rows.Err()
}

func scanTask(row scanner) (*model.Task, error) {
	t := &model.Task{}
	var address, city, state, reqDescription sql.NullString
	var deadline sql.NullTime

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.Difficulty,
		&t.Points,
		&t.Location.Lat,
		&t.Location.Lng,
		&address,
		&city,
		&state,
		&t.Location.Country,
		&t.Requirements.Images,
		&reqDescription,
		pq.Array(&t.Requirements.Checklist),
		&deadline,
		&t.IsActive,
		&t.CreatedBy,
		&t.Statistics.TotalSubmissions,
		&t.Statistics.VerifiedSubmissions,
		&t.Statistics.CompletionRate,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Location.Address = address.String
	t.Location.City = city.String
	t.Location.State = state.String
	t.Requirements.Description = reqDescription.String
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	return t, nil
}

func scanSubmission(row scanner) (*model.Submission, error) {
	s := &model.Submission{}
	var description, feedback sql.NullString
	var lat, lng sql.NullFloat64
	var verifiedBy uuid.NullUUID
	var verifiedAt, rewardedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.TaskID,
		&s.UserID,
		pq.Array(&s.Images),
		&description,
		&lat,
		&lng,
		&s.Status,
		&verifiedBy,
		&verifiedAt,
		&feedback,
		&s.Rewarded,
		&rewardedAt,
		&s.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	fillSubmission(s, description, feedback, lat, lng, verifiedBy, verifiedAt, rewardedAt)
	return s, nil
}

func fillSubmission(s *model.Submission, description, feedback sql.NullString, lat, lng sql.NullFloat64,
	verifiedBy uuid.NullUUID, verifiedAt, rewardedAt sql.NullTime) {
	s.Description = description.String
	s.Feedback = feedback.String
	if s.Images == nil {
		s.Images = []string{}
	}
	if lat.Valid && lng.Valid {
		s.Location = &model.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	if verifiedBy.Valid {
		id := verifiedBy.UUID
		s.VerifiedBy = &id
	}
	if verifiedAt.Valid {
		at := verifiedAt.Time
		s.VerifiedAt = &at
	}
	if rewardedAt.Valid {
		at := rewardedAt.Time
		s.RewardedAt = &at
	}
}
