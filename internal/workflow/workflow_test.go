package workflow

import (
	"testing"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

func officer() model.Actor {
	return model.Actor{UserID: uuid.New(), Username: "officer.rao", Role: model.RoleGovernment}
}

func newPending() *model.Complaint {
	return NewComplaint(uuid.New(), "  Garbage by the lake ", "Bags dumped overnight", model.CategoryIllegalDumping,
		model.SeverityHigh, model.PriorityHigh, model.Location{Lat: 19.07, Lng: 72.87}, nil, now)
}

func TestNewComplaint(t *testing.T) {
	c := newPending()

	assert.Equal(t, "Garbage by the lake", c.Title)
	assert.Equal(t, model.StatusPending, c.Status)
	require.Len(t, c.Timeline, 1)
	assert.Equal(t, "pending", c.Timeline[0].Status)
	assert.Equal(t, "Complaint submitted successfully", c.Timeline[0].Description)
	assert.Equal(t, c.ReportedBy, c.Timeline[0].UpdatedBy)
	assert.NotNil(t, c.Images)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from model.ComplaintStatus
		to   model.ComplaintStatus
		want bool
	}{
		{model.StatusPending, model.StatusAcknowledged, true},
		{model.StatusPending, model.StatusResolved, true},
		{model.StatusPending, model.StatusRejected, true},
		{model.StatusAcknowledged, model.StatusInProgress, true},
		{model.StatusAcknowledged, model.StatusPending, false},
		{model.StatusInProgress, model.StatusAcknowledged, false},
		{model.StatusInProgress, model.StatusRejected, true},
		{model.StatusResolved, model.StatusResolved, false},
		{model.StatusResolved, model.StatusPending, false},
		{model.StatusRejected, model.StatusInProgress, false},
		{model.StatusPending, model.StatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestApplyTransitionGovernmentResponse(t *testing.T) {
	actor := officer()
	c := newPending()

	out, err := ApplyTransition(c, actor, model.StatusAcknowledged, "Team notified", now)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, out.From)
	assert.False(t, out.AwardDue)
	assert.True(t, c.GovernmentResponse.Acknowledgment.Received)
	assert.Equal(t, "Team notified", c.GovernmentResponse.Acknowledgment.Message)
	assert.Equal(t, "officer.rao", c.GovernmentResponse.Acknowledgment.Officer)

	_, err = ApplyTransition(c, actor, model.StatusInProgress, "Crew dispatched", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, c.GovernmentResponse.Action.Taken)
	assert.Equal(t, "Crew dispatched", c.GovernmentResponse.Action.Description)

	out, err = ApplyTransition(c, actor, model.StatusResolved, "", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, out.AwardDue)
	assert.True(t, c.GovernmentResponse.Resolution.Resolved)
	assert.Equal(t, model.StatusResolved, c.Status)
	assert.Equal(t, "Complaint resolved", out.Entry.Description)

	require.Len(t, c.Timeline, 4)
	assert.Equal(t, []string{"pending", "acknowledged", "in_progress", "resolved"},
		[]string{c.Timeline[0].Status, c.Timeline[1].Status, c.Timeline[2].Status, c.Timeline[3].Status})
}

func TestApplyTransitionRejectsIllegalMoves(t *testing.T) {
	actor := officer()
	c := newPending()

	_, err := ApplyTransition(c, actor, model.StatusResolved, "done", now)
	require.NoError(t, err)

	before := len(c.Timeline)
	_, err = ApplyTransition(c, actor, model.StatusResolved, "again", now)
	assert.True(t, apperr.IsInvalidState(err))
	assert.Len(t, c.Timeline, before, "a refused transition appends nothing")

	_, err = ApplyTransition(newPending(), actor, model.StatusPending, "", now)
	assert.True(t, apperr.IsValidation(err))

	_, err = ApplyTransition(newPending(), actor, model.ComplaintStatus("closed"), "", now)
	assert.True(t, apperr.IsValidation(err))
}

func TestApplyTransitionNoAwardWhenAlreadyAwarded(t *testing.T) {
	c := newPending()
	c.Reward.Awarded = true

	out, err := ApplyTransition(c, officer(), model.StatusResolved, "", now)
	require.NoError(t, err)
	assert.False(t, out.AwardDue)
}

func TestApplyAssignment(t *testing.T) {
	c := newPending()
	officerID := uuid.New()

	entry := ApplyAssignment(c, officer(), "Municipal Solid Waste", &officerID, now)

	assert.Equal(t, model.StatusPending, c.Status, "assignment keeps the status")
	require.NotNil(t, c.AssignedTo)
	assert.Equal(t, "Municipal Solid Waste", c.AssignedTo.Department)
	assert.Equal(t, &officerID, c.AssignedTo.Officer)
	assert.Equal(t, model.TimelineAssigned, entry.Status)
	assert.Equal(t, "Complaint assigned to Municipal Solid Waste", entry.Description)
}

func TestApplyFeedback(t *testing.T) {
	c := newPending()
	reporter := model.Actor{UserID: c.ReportedBy, Role: model.RoleUser}

	err := ApplyFeedback(c, reporter, 4, "quick", now)
	assert.True(t, apperr.IsInvalidState(err))

	_, err = ApplyTransition(c, officer(), model.StatusResolved, "", now)
	require.NoError(t, err)

	err = ApplyFeedback(c, model.Actor{UserID: uuid.New(), Role: model.RoleUser}, 4, "", now)
	assert.True(t, apperr.IsUnauthorized(err))

	err = ApplyFeedback(c, reporter, 6, "", now)
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, ApplyFeedback(c, reporter, 3, "slow", now))
	require.NoError(t, ApplyFeedback(c, reporter, 5, "fixed properly", now.Add(time.Minute)))
	assert.Equal(t, 5, c.Feedback.Rating)
	assert.Equal(t, "fixed properly", c.Feedback.Comment)
}

func TestCheckSubmittable(t *testing.T) {
	userID := uuid.New()
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		task   model.Task
		images []string
		check  func(error) bool
	}{
		{
			name:   "inactive task",
			task:   model.Task{IsActive: false},
			images: []string{"a.jpg"},
			check:  apperr.IsInvalidState,
		},
		{
			name:   "past deadline",
			task:   model.Task{IsActive: true, Deadline: &past},
			images: []string{"a.jpg"},
			check:  apperr.IsInvalidState,
		},
		{
			name:   "too few images",
			task:   model.Task{IsActive: true, Requirements: model.Requirements{Images: 2}},
			images: []string{"a.jpg"},
			check:  apperr.IsValidation,
		},
		{
			name: "already submitted",
			task: model.Task{IsActive: true, Submissions: []model.Submission{
				{ID: uuid.New(), UserID: userID, Status: model.SubmissionRejected},
			}},
			images: []string{"a.jpg"},
			check:  apperr.IsConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSubmittable(&tt.task, userID, tt.images, now)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	ok := model.Task{IsActive: true, Requirements: model.Requirements{Images: 1}}
	assert.NoError(t, CheckSubmittable(&ok, userID, []string{"a.jpg"}, now))
}

func TestApplyVerification(t *testing.T) {
	actor := officer()

	s := NewSubmission(uuid.New(), uuid.New(), []string{"a.jpg"}, "planted 3 saplings", nil, now)
	due, err := ApplyVerification(&s, actor, model.SubmissionVerified, "great", now)
	require.NoError(t, err)
	assert.True(t, due)
	assert.Equal(t, model.SubmissionVerified, s.Status)
	assert.Equal(t, actor.UserID, *s.VerifiedBy)

	_, err = ApplyVerification(&s, actor, model.SubmissionRejected, "", now)
	assert.True(t, apperr.IsInvalidState(err), "a settled submission cannot be verified again")

	r := NewSubmission(uuid.New(), uuid.New(), []string{"a.jpg"}, "", nil, now)
	due, err = ApplyVerification(&r, actor, model.SubmissionRejected, "blurry", now)
	require.NoError(t, err)
	assert.False(t, due)

	p := NewSubmission(uuid.New(), uuid.New(), nil, "", nil, now)
	_, err = ApplyVerification(&p, actor, model.SubmissionPending, "", now)
	assert.True(t, apperr.IsValidation(err))
}
