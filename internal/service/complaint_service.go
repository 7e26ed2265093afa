package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/ledger"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/messaging"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"
	"prakriti-service/internal/scoring"
	"prakriti-service/internal/workflow"

	"github.com/google/uuid"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ComplaintService struct {
	complaintRepo *repository.ComplaintRepository
	userRepo      *repository.UserRepository
	outboxRepo    *repository.OutboxRepository
	ledger        *ledger.Ledger
	metrics       *metrics.Metrics
	log           *logger.Logger
	now           func() time.Time
}

func NewComplaintService(complaintRepo *repository.ComplaintRepository, userRepo *repository.UserRepository,
	outboxRepo *repository.OutboxRepository, l *ledger.Ledger, m *metrics.Metrics, log *logger.Logger) *ComplaintService {
	return &ComplaintService{
		complaintRepo: complaintRepo,
		userRepo:      userRepo,
		outboxRepo:    outboxRepo,
		ledger:        l,
		metrics:       m,
		log:           log,
		now:           time.Now,
	}
}

// Create files a new pending complaint for the actor.
func (s *ComplaintService) Create(ctx context.Context, actor model.Actor, req *model.CreateComplaintRequest) (*model.Complaint, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	severity := req.Severity
	if severity == "" {
		severity = model.SeverityMedium
	}

	now := s.now().UTC()
	c := workflow.NewComplaint(actor.UserID, req.Title, req.Description, req.Category, severity,
		scoring.Priority(severity, req.Category), req.Location.Location(), req.Images, now)
	c.Reward.Points = scoring.DefaultComplaintReward

	tx, err := s.complaintRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.userRepo.Provision(ctx, tx, actor); err != nil {
		return nil, err
	}
	if err := s.complaintRepo.Create(ctx, tx, c); err != nil {
		return nil, err
	}

	err = s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeyComplaintCreated, messaging.ComplaintCreatedEvent{
		ComplaintID: c.ID.String(),
		Title:       c.Title,
		Category:    string(c.Category),
		Priority:    string(c.Priority),
		ReporterID:  c.ReportedBy.String(),
		Timestamp:   now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithField("complaint_id", c.ID).WithField("priority", c.Priority).Info("complaint created")
	return c, nil
}

func (s *ComplaintService) Get(ctx context.Context, id uuid.UUID) (*model.Complaint, error) {
	return s.complaintRepo.FindByID(ctx, id)
}

func (s *ComplaintService) List(ctx context.Context, f model.ComplaintFilter) (*model.ComplaintListResponse, error) {
	if err := validateComplaintFilter(f); err != nil {
		return nil, err
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	complaints, total, err := s.complaintRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.ComplaintListResponse{
		Complaints: complaints,
		Pagination: model.NewPagination(total, f.Page, f.Limit),
	}, nil
}

// Mine lists the actor's own complaints.
func (s *ComplaintService) Mine(ctx context.Context, actor model.Actor, page, limit int) (*model.ComplaintListResponse, error) {
	reporter := actor.UserID
	return s.List(ctx, model.ComplaintFilter{ReportedBy: &reporter, Page: page, Limit: limit})
}

// Transition moves the complaint to a new status. Resolving credits the
// reporter at most once.
func (s *ComplaintService) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.TransitionRequest) (*model.Complaint, error) {
	if !actor.CanManage() {
		return nil, apperr.Unauthorized("admin or government role required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	tx, err := s.complaintRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c, err := s.complaintRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	out, err := workflow.ApplyTransition(c, actor, req.Status, req.Description, now)
	if err != nil {
		return nil, err
	}

	if err := s.complaintRepo.Update(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.complaintRepo.AppendTimeline(ctx, tx, c.ID, out.Entry); err != nil {
		return nil, err
	}

	var award *model.RewardEntry
	if out.AwardDue {
		award, err = s.awardComplaint(ctx, tx, c)
		if err != nil {
			return nil, err
		}
	}

	err = s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeyComplaintStatus, messaging.ComplaintStatusEvent{
		ComplaintID: c.ID.String(),
		Title:       c.Title,
		ReporterID:  c.ReportedBy.String(),
		OldStatus:   string(out.From),
		NewStatus:   string(c.Status),
		Description: req.Description,
		UpdatedBy:   actor.UserID.String(),
		Timestamp:   now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.ComplaintTransitions.WithLabelValues(string(c.Status)).Inc()
	recordAward(s.metrics, award)
	s.log.WithField("complaint_id", c.ID).WithField("from", out.From).WithField("to", c.Status).Info("complaint transitioned")
	return c, nil
}

func (s *ComplaintService) awardComplaint(ctx context.Context, tx *sql.Tx, c *model.Complaint) (*model.RewardEntry, error) {
	entry, err := s.ledger.AwardComplaint(ctx, tx, c.ID, c.ReportedBy, c.Reward.Points)
	if errors.Is(err, ledger.ErrAlreadyAwarded) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	at := entry.CreatedAt
	c.Reward = model.Reward{Points: entry.Points, Awarded: true, AwardedAt: &at}

	err = s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeyRewardAwarded, rewardEvent(entry))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Assign records the handling department and officer.
func (s *ComplaintService) Assign(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.AssignRequest) (*model.Complaint, error) {
	if !actor.CanManage() {
		return nil, apperr.Unauthorized("admin or government role required")
	}
	req.Department = strings.TrimSpace(req.Department)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	tx, err := s.complaintRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c, err := s.complaintRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	entry := workflow.ApplyAssignment(c, actor, req.Department, req.OfficerID, now)
	if err := s.complaintRepo.Update(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.complaintRepo.AppendTimeline(ctx, tx, c.ID, entry); err != nil {
		return nil, err
	}

	ev := messaging.ComplaintAssignedEvent{
		ComplaintID: c.ID.String(),
		Title:       c.Title,
		ReporterID:  c.ReportedBy.String(),
		Department:  req.Department,
		AssignedBy:  actor.UserID.String(),
		Timestamp:   now.Unix(),
	}
	if req.OfficerID != nil {
		ev.OfficerID = req.OfficerID.String()
	}
	if err := s.outboxRepo.CreateInTransaction(ctx, tx, messaging.RoutingKeyComplaintAssigned, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// AddFeedback stores the reporter's rating of a resolved complaint.
func (s *ComplaintService) AddFeedback(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.FeedbackRequest) (*model.Complaint, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	tx, err := s.complaintRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c, err := s.complaintRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := workflow.ApplyFeedback(c, actor, req.Rating, req.Comment, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.complaintRepo.Update(ctx, tx, c); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func validateComplaintFilter(f model.ComplaintFilter) error {
	verr := &apperr.ValidationError{}
	if f.Status != "" && f.Status != model.StatusPending && !workflow.ValidTarget(f.Status) {
		verr.Add("status", "unknown status")
	}
	if f.Category != "" && !scoring.ValidCategory(f.Category) {
		verr.Add("category", "unknown category")
	}
	if f.Priority != "" && !validPriority(f.Priority) {
		verr.Add("priority", "unknown priority")
	}
	return verr.OrNil()
}

func validPriority(p model.Priority) bool {
	switch p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
		return true
	}
	return false
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func rewardEvent(e *model.RewardEntry) messaging.RewardAwardedEvent {
	return messaging.RewardAwardedEvent{
		UserID:    e.UserID.String(),
		Source:    string(e.Source),
		SourceID:  e.SourceID.String(),
		Points:    e.Points,
		Timestamp: e.CreatedAt.Unix(),
	}
}

func recordAward(m *metrics.Metrics, e *model.RewardEntry) {
	if e == nil {
		return
	}
	m.RewardsAwarded.WithLabelValues(string(e.Source)).Inc()
	m.RewardPoints.WithLabelValues(string(e.Source)).Add(float64(e.Points))
}
