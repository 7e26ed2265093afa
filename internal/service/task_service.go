package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/geo"
	"prakriti-service/internal/ledger"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/messaging"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"
	"prakriti-service/internal/workflow"

	"github.com/google/uuid"
)

type TaskService struct {
	taskRepo   *repository.TaskRepository
	userRepo   *repository.UserRepository
	outboxRepo *repository.OutboxRepository
	ledger     *ledger.Ledger
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time

	defaultRadius float64
}

func NewTaskService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository,
	outboxRepo *repository.OutboxRepository, l *ledger.Ledger, m *metrics.Metrics, log *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		ledger:     l,
		metrics:    m,
		log:        log,
		now:        time.Now,

		defaultRadius: geo.DefaultRadiusMeters,
	}
}

// WithDefaultRadius sets the search radius used when a nearby query gives
// none. Values outside the accepted range are ignored.
func (s *TaskService) WithDefaultRadius(meters float64) *TaskService {
	if geo.ValidateRadius(meters) == nil {
		s.defaultRadius = meters
	}
	return s
}

func (s *TaskService) Create(ctx context.Context, actor model.Actor, req *model.CreateTaskRequest) (*model.Task, error) {
	if !actor.CanManage() {
		return nil, apperr.Unauthorized("admin or government role required")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if req.Deadline != nil && !req.Deadline.After(now) {
		return nil, apperr.Validation("deadline", "must be in the future")
	}

	t := &model.Task{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Points:      req.Points,
		Location:    req.Location.Location(),
		Requirements: model.Requirements{
			Images: 1,
		},
		Deadline:  req.Deadline,
		IsActive:  true,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Difficulty == "" {
		t.Difficulty = model.DifficultyEasy
	}
	if t.Location.Country == "" {
		t.Location.Country = model.DefaultCountry
	}
	if r := req.Requirements; r != nil {
		if r.Images != nil {
			t.Requirements.Images = *r.Images
		}
		t.Requirements.Description = r.Description
		t.Requirements.Checklist = r.Checklist
	}

	cells := geo.CellsFor(t.Location.Lat, t.Location.Lng)

	tx, err := s.taskRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.userRepo.Provision(ctx, tx, actor); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Create(ctx, tx, t, cells); err != nil {
		return nil, err
	}

	err = s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeyTaskCreated, messaging.TaskCreatedEvent{
		TaskID:    t.ID.String(),
		Title:     t.Title,
		Category:  string(t.Category),
		Points:    t.Points,
		CreatedBy: actor.UserID.String(),
		Timestamp: now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithField("task_id", t.ID).Info("task created")
	return t, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context, f model.TaskFilter) (*model.TaskListResponse, error) {
	if err := validateTaskCategory(f.Category); err != nil {
		return nil, err
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	tasks, total, err := s.taskRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.TaskListResponse{
		Tasks:      tasks,
		Pagination: model.NewPagination(total, f.Page, f.Limit),
	}, nil
}

// Nearby returns active tasks within the radius of the center, nearest
// first. Candidates come from the H3 cells and are filtered by distance.
func (s *TaskService) Nearby(ctx context.Context, q model.NearbyQuery) ([]model.Task, error) {
	if err := validateTaskCategory(q.Category); err != nil {
		return nil, err
	}
	if q.RadiusMeters == 0 {
		q.RadiusMeters = s.defaultRadius
	}
	if err := geo.ValidateRadius(q.RadiusMeters); err != nil {
		return nil, apperr.Validation("radius", err.Error())
	}
	if err := geo.ValidatePoint(q.Lat, q.Lng); err != nil {
		return nil, apperr.Validation("location", err.Error())
	}

	search, err := geo.Covering(q.Lat, q.Lng, q.RadiusMeters)
	if err != nil {
		return nil, apperr.Validation("location", err.Error())
	}

	candidates, err := s.taskRepo.FindInCells(ctx, search.Resolution, search.Cells, q.Category)
	if err != nil {
		return nil, err
	}

	nearby := make([]model.Task, 0, len(candidates))
	for _, t := range candidates {
		d := geo.Distance(q.Lat, q.Lng, t.Location.Lat, t.Location.Lng)
		if d > q.RadiusMeters {
			continue
		}
		t.DistanceMeters = &d
		nearby = append(nearby, t)
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		di, dj := *nearby[i].DistanceMeters, *nearby[j].DistanceMeters
		if di != dj {
			return di < dj
		}
		return nearby[i].CreatedAt.After(nearby[j].CreatedAt)
	})
	return nearby, nil
}

// Submit appends the user's submission to an active task.
func (s *TaskService) Submit(ctx context.Context, actor model.Actor, taskID uuid.UUID, req *model.SubmitTaskRequest) (*model.Task, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	tx, err := s.taskRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.userRepo.Provision(ctx, tx, actor); err != nil {
		return nil, err
	}

	t, err := s.taskRepo.FindByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckSubmittable(t, actor.UserID, req.Images, now); err != nil {
		return nil, err
	}

	var loc *model.Location
	if req.Location != nil {
		l := req.Location.Location()
		loc = &l
	}
	sub := workflow.NewSubmission(t.ID, actor.UserID, req.Images, req.Description, loc, now)
	if err := s.taskRepo.CreateSubmission(ctx, tx, &sub); err != nil {
		return nil, err
	}
	t.Submissions = append(t.Submissions, sub)

	t.Statistics, err = s.taskRepo.RefreshStatistics(ctx, tx, t.ID)
	if err != nil {
		return nil, err
	}

	err = s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeySubmissionCreated, messaging.SubmissionCreatedEvent{
		TaskID:       t.ID.String(),
		TaskTitle:    t.Title,
		SubmissionID: sub.ID.String(),
		UserID:       actor.UserID.String(),
		Timestamp:    now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// Verify settles a pending submission. A verified submission credits the
// submitter with the task's points once.
func (s *TaskService) Verify(ctx context.Context, actor model.Actor, taskID, submissionID uuid.UUID, req *model.VerifyRequest) (*model.Task, error) {
	if !actor.CanManage() {
		return nil, apperr.Unauthorized("admin or government role required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	tx, err := s.taskRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.taskRepo.FindByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	sub := t.FindSubmission(submissionID)
	if sub == nil {
		return nil, apperr.NotFound("submission", submissionID)
	}

	due, err := workflow.ApplyVerification(sub, actor, req.Status, req.Feedback, now)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.SettleSubmission(ctx, tx, sub); err != nil {
		return nil, err
	}

	t.Statistics, err = s.taskRepo.RefreshStatistics(ctx, tx, t.ID)
	if err != nil {
		return nil, err
	}

	var award *model.RewardEntry
	if due {
		award, err = s.ledger.AwardSubmission(ctx, tx, sub.ID, sub.UserID, t.Points)
		switch {
		case errors.Is(err, ledger.ErrAlreadyAwarded):
			award = nil
		case err != nil:
			return nil, err
		default:
			at := award.CreatedAt
			sub.Rewarded = true
			sub.RewardedAt = &at
			if err := s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeyRewardAwarded, rewardEvent(award)); err != nil {
				return nil, err
			}
		}
	}

	err = s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeySubmissionVerified, messaging.SubmissionVerifiedEvent{
		TaskID:       t.ID.String(),
		TaskTitle:    t.Title,
		SubmissionID: sub.ID.String(),
		UserID:       sub.UserID.String(),
		Status:       string(sub.Status),
		Feedback:     sub.Feedback,
		VerifiedBy:   actor.UserID.String(),
		Timestamp:    now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	recordAward(s.metrics, award)
	s.log.WithField("task_id", t.ID).WithField("submission_id", sub.ID).WithField("status", sub.Status).Info("submission verified")
	return t, nil
}

func (s *TaskService) MySubmissions(ctx context.Context, actor model.Actor) ([]model.UserSubmission, error) {
	return s.taskRepo.FindSubmissionsByUser(ctx, actor.UserID)
}

// RecomputeStatistics refreshes one task's rollup, or every task's when id
// is nil. It returns the number of tasks refreshed.
func (s *TaskService) RecomputeStatistics(ctx context.Context, id *uuid.UUID) (int, error) {
	if id == nil {
		return s.taskRepo.RefreshAllStatistics(ctx)
	}
	if _, err := s.taskRepo.RefreshStatisticsFor(ctx, *id); err != nil {
		return 0, err
	}
	return 1, nil
}

func validateTaskCategory(c model.TaskCategory) error {
	switch c {
	case "", model.TaskWasteSegregation, model.TaskTreePlanting, model.TaskWaterConservation,
		model.TaskEnergySaving, model.TaskCleanupDrive, model.TaskAwarenessCampaign:
		return nil
	}
	return apperr.Validation("category", "unknown task category")
}
