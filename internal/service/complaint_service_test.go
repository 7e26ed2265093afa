package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/ledger"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/messaging"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

var complaintRowColumns = []string{
	"id", "title", "description", "category", "severity", "priority", "status",
	"location_lat", "location_lng", "address", "city", "state", "pincode", "landmark", "images", "reported_by",
	"assigned_department", "assigned_officer", "assigned_at", "government_response",
	"reward_points", "reward_awarded", "reward_awarded_at",
	"feedback_rating", "feedback_comment", "feedback_submitted_at", "created_at", "updated_at",
}

var timelineColumns = []string{"id", "status", "description", "updated_by", "created_at"}

func complaintRows(id, reporter uuid.UUID, status model.ComplaintStatus, awarded bool) *sqlmock.Rows {
	var awardedAt interface{}
	if awarded {
		awardedAt = testNow
	}
	return sqlmock.NewRows(complaintRowColumns).AddRow(
		id.String(), "Sewage outflow", "Untreated water into the lake", "water_pollution", "high", "high", string(status),
		12.97, 77.59, nil, "Bengaluru", nil, nil, nil, "{}", reporter.String(),
		nil, nil, nil, []byte(`{}`),
		50, awarded, awardedAt,
		nil, nil, nil, testNow, testNow,
	)
}

func timelineRows(reporter uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(timelineColumns).
		AddRow(uuid.New().String(), "pending", "Complaint submitted successfully", reporter.String(), testNow)
}

func newComplaintService(t *testing.T) (*ComplaintService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewComplaintService(
		repository.NewComplaintRepository(db),
		repository.NewUserRepository(db),
		repository.NewOutboxRepository(db),
		ledger.WithClock(func() time.Time { return testNow }),
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		logger.Nop(),
	)
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func expectLockedComplaint(mock sqlmock.Sqlmock, id, reporter uuid.UUID, status model.ComplaintStatus, awarded bool) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM complaints WHERE id = .+ FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(complaintRows(id, reporter, status, awarded))
	mock.ExpectQuery(`FROM complaint_timeline`).
		WithArgs(id).
		WillReturnRows(timelineRows(reporter))
}

func expectComplaintAward(mock sqlmock.Sqlmock, id, reporter uuid.UUID) {
	mock.ExpectExec(`UPDATE complaints SET reward_awarded = TRUE`).
		WithArgs(id, testNow, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO reward_ledger`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE users SET points_earned`).
		WithArgs(reporter, 50).
		WillReturnRows(sqlmock.NewRows([]string{"experience", "streak_current", "streak_longest", "streak_last_activity"}).
			AddRow(50, 0, 0, nil))
	mock.ExpectExec(`UPDATE users SET level`).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func floatPtr(f float64) *float64 { return &f }

func TestComplaintCreate(t *testing.T) {
	reporter := model.Actor{UserID: uuid.New(), Username: "asha", Role: model.RoleUser}

	tests := []struct {
		name      string
		req       model.CreateComplaintRequest
		setupMock func(sqlmock.Sqlmock)
		wantField string
		check     func(t *testing.T, c *model.Complaint)
	}{
		{
			name: "creates pending complaint with computed priority",
			req: model.CreateComplaintRequest{
				Title:       "  Chemical discharge  ",
				Description: "Factory outlet into the river",
				Category:    model.CategoryWaterPollution,
				Severity:    model.SeverityCritical,
				Location:    &model.LocationInput{Lat: floatPtr(19.07), Lng: floatPtr(72.87), City: "Mumbai"},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(reporter.UserID, "asha", "user").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO complaints`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO complaint_timeline`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO outbox_messages`).
					WithArgs(sqlmock.AnyArg(), messaging.RoutingKeyComplaintCreated, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			check: func(t *testing.T, c *model.Complaint) {
				assert.Equal(t, "Chemical discharge", c.Title)
				assert.Equal(t, model.StatusPending, c.Status)
				assert.Equal(t, model.PriorityUrgent, c.Priority)
				assert.Equal(t, 50, c.Reward.Points)
				assert.False(t, c.Reward.Awarded)
				assert.Equal(t, []string{}, c.Images)
				require.Len(t, c.Timeline, 1)
				assert.Equal(t, "pending", c.Timeline[0].Status)
			},
		},
		{
			name: "severity defaults to medium",
			req: model.CreateComplaintRequest{
				Title:       "Loudspeakers at night",
				Description: "Every night past midnight",
				Category:    model.CategoryNoisePollution,
				Location:    &model.LocationInput{Lat: floatPtr(0), Lng: floatPtr(0)},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`INSERT INTO complaints`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO complaint_timeline`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO outbox_messages`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			check: func(t *testing.T, c *model.Complaint) {
				assert.Equal(t, model.SeverityMedium, c.Severity)
				assert.Equal(t, model.PriorityMedium, c.Priority)
			},
		},
		{
			name: "blank title is rejected",
			req: model.CreateComplaintRequest{
				Title:       "   ",
				Description: "desc",
				Category:    model.CategoryOther,
				Location:    &model.LocationInput{Lat: floatPtr(1), Lng: floatPtr(1)},
			},
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantField: "title",
		},
		{
			name: "missing coordinates are rejected",
			req: model.CreateComplaintRequest{
				Title:       "No location",
				Description: "desc",
				Category:    model.CategoryOther,
				Location:    &model.LocationInput{City: "Pune"},
			},
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantField: "location.lat",
		},
		{
			name: "unknown category is rejected",
			req: model.CreateComplaintRequest{
				Title:       "Odd",
				Description: "desc",
				Category:    "littering",
				Location:    &model.LocationInput{Lat: floatPtr(1), Lng: floatPtr(1)},
			},
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantField: "category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newComplaintService(t)
			tt.setupMock(mock)

			req := tt.req
			c, err := svc.Create(context.Background(), reporter, &req)
			if tt.wantField != "" {
				var verr *apperr.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, tt.wantField)
			} else {
				require.NoError(t, err)
				tt.check(t, c)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestComplaintResolveTwiceAwardsOnce(t *testing.T) {
	svc, mock := newComplaintService(t)
	id, reporter := uuid.New(), uuid.New()
	officer := model.Actor{UserID: uuid.New(), Username: "officer", Role: model.RoleGovernment}

	expectLockedComplaint(mock, id, reporter, model.StatusInProgress, false)
	mock.ExpectExec(`UPDATE complaints SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO complaint_timeline`).WillReturnResult(sqlmock.NewResult(0, 1))
	expectComplaintAward(mock, id, reporter)
	mock.ExpectExec(`INSERT INTO outbox_messages`).
		WithArgs(sqlmock.AnyArg(), messaging.RoutingKeyRewardAwarded, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO outbox_messages`).
		WithArgs(sqlmock.AnyArg(), messaging.RoutingKeyComplaintStatus, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := svc.Transition(context.Background(), officer, id, &model.TransitionRequest{Status: model.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, c.Status)
	assert.True(t, c.Reward.Awarded)
	assert.True(t, c.GovernmentResponse.Resolution.Resolved)

	// The row now reads back as resolved and awarded.
	expectLockedComplaint(mock, id, reporter, model.StatusResolved, true)
	mock.ExpectRollback()

	_, err = svc.Transition(context.Background(), officer, id, &model.TransitionRequest{Status: model.StatusResolved})
	assert.True(t, apperr.IsInvalidState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintTransitionSkipsClaimedAward(t *testing.T) {
	svc, mock := newComplaintService(t)
	id, reporter := uuid.New(), uuid.New()
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}

	expectLockedComplaint(mock, id, reporter, model.StatusPending, false)
	mock.ExpectExec(`UPDATE complaints SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO complaint_timeline`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE complaints SET reward_awarded = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO outbox_messages`).
		WithArgs(sqlmock.AnyArg(), messaging.RoutingKeyComplaintStatus, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := svc.Transition(context.Background(), admin, id, &model.TransitionRequest{Status: model.StatusResolved})
	require.NoError(t, err)
	assert.False(t, c.Reward.Awarded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintTransitionErrors(t *testing.T) {
	id, reporter := uuid.New(), uuid.New()
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}

	tests := []struct {
		name      string
		actor     model.Actor
		req       model.TransitionRequest
		setupMock func(sqlmock.Sqlmock)
		check     func(error) bool
	}{
		{
			name:      "citizen cannot transition",
			actor:     model.Actor{UserID: reporter, Role: model.RoleUser},
			req:       model.TransitionRequest{Status: model.StatusAcknowledged},
			setupMock: func(mock sqlmock.Sqlmock) {},
			check:     apperr.IsUnauthorized,
		},
		{
			name:      "pending is not a target",
			actor:     admin,
			req:       model.TransitionRequest{Status: model.StatusPending},
			setupMock: func(mock sqlmock.Sqlmock) {},
			check:     apperr.IsValidation,
		},
		{
			name:  "rejected is terminal",
			actor: admin,
			req:   model.TransitionRequest{Status: model.StatusInProgress},
			setupMock: func(mock sqlmock.Sqlmock) {
				expectLockedComplaint(mock, id, reporter, model.StatusRejected, false)
				mock.ExpectRollback()
			},
			check: apperr.IsInvalidState,
		},
		{
			name:  "missing complaint",
			actor: admin,
			req:   model.TransitionRequest{Status: model.StatusAcknowledged},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FROM complaints WHERE id`).WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			check: apperr.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newComplaintService(t)
			tt.setupMock(mock)

			req := tt.req
			_, err := svc.Transition(context.Background(), tt.actor, id, &req)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestComplaintAssign(t *testing.T) {
	svc, mock := newComplaintService(t)
	id, reporter, officerID := uuid.New(), uuid.New(), uuid.New()
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}

	expectLockedComplaint(mock, id, reporter, model.StatusAcknowledged, false)
	mock.ExpectExec(`UPDATE complaints SET status`).
		WithArgs(id, "acknowledged", sqlmock.AnyArg(), "Water Board", officerID.String(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil, nil, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO complaint_timeline`).
		WithArgs(sqlmock.AnyArg(), id, model.TimelineAssigned, "Complaint assigned to Water Board", admin.UserID, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO outbox_messages`).
		WithArgs(sqlmock.AnyArg(), messaging.RoutingKeyComplaintAssigned, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := svc.Assign(context.Background(), admin, id, &model.AssignRequest{Department: " Water Board ", OfficerID: &officerID})
	require.NoError(t, err)
	require.NotNil(t, c.AssignedTo)
	assert.Equal(t, "Water Board", c.AssignedTo.Department)
	assert.Equal(t, model.StatusAcknowledged, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintFeedback(t *testing.T) {
	id, reporter := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		actor     model.Actor
		status    model.ComplaintStatus
		rating    int
		setupMock func(sqlmock.Sqlmock, model.ComplaintStatus)
		check     func(error) bool
	}{
		{
			name:   "reporter rates resolved complaint",
			actor:  model.Actor{UserID: reporter, Role: model.RoleUser},
			status: model.StatusResolved,
			rating: 5,
			setupMock: func(mock sqlmock.Sqlmock, status model.ComplaintStatus) {
				expectLockedComplaint(mock, id, reporter, status, true)
				mock.ExpectExec(`UPDATE complaints SET status`).
					WithArgs(id, "resolved", sqlmock.AnyArg(), nil, nil, nil, sqlmock.AnyArg(), int64(5), "great work", testNow, testNow).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			check: func(err error) bool { return err == nil },
		},
		{
			name:   "not resolved yet",
			actor:  model.Actor{UserID: reporter, Role: model.RoleUser},
			status: model.StatusInProgress,
			rating: 4,
			setupMock: func(mock sqlmock.Sqlmock, status model.ComplaintStatus) {
				expectLockedComplaint(mock, id, reporter, status, false)
				mock.ExpectRollback()
			},
			check: apperr.IsInvalidState,
		},
		{
			name:   "someone else's complaint",
			actor:  model.Actor{UserID: uuid.New(), Role: model.RoleAdmin},
			status: model.StatusResolved,
			rating: 4,
			setupMock: func(mock sqlmock.Sqlmock, status model.ComplaintStatus) {
				expectLockedComplaint(mock, id, reporter, status, true)
				mock.ExpectRollback()
			},
			check: apperr.IsUnauthorized,
		},
		{
			name:      "rating out of range",
			actor:     model.Actor{UserID: reporter, Role: model.RoleUser},
			rating:    9,
			setupMock: func(mock sqlmock.Sqlmock, status model.ComplaintStatus) {},
			check:     apperr.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newComplaintService(t)
			tt.setupMock(mock, tt.status)

			_, err := svc.AddFeedback(context.Background(), tt.actor, id, &model.FeedbackRequest{Rating: tt.rating, Comment: "great work"})
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestComplaintListRejectsUnknownFilter(t *testing.T) {
	svc, mock := newComplaintService(t)

	_, err := svc.List(context.Background(), model.ComplaintFilter{Status: "archived", Priority: "extreme"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")
	assert.Contains(t, verr.Fields, "priority")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintMine(t *testing.T) {
	svc, mock := newComplaintService(t)
	reporter := uuid.New()

	mock.ExpectQuery(`SELECT COUNT.+ FROM complaints WHERE reported_by`).
		WithArgs(reporter).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM complaints WHERE reported_by .+ ORDER BY created_at DESC`).
		WithArgs(reporter, 20, 0).
		WillReturnRows(complaintRows(uuid.New(), reporter, model.StatusPending, false))

	resp, err := svc.Mine(context.Background(), model.Actor{UserID: reporter}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Complaints, 1)
	assert.Equal(t, model.Pagination{Total: 1, Page: 1, Pages: 1, Limit: 20}, resp.Pagination)
	assert.NoError(t, mock.ExpectationsWereMet())
}
