package workflow

import (
	"fmt"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"

	"github.com/google/uuid"
)

// CheckSubmittable verifies that the user may append a submission to t.
func CheckSubmittable(t *model.Task, userID uuid.UUID, images []string, now time.Time) error {
	if !t.IsActive {
		return apperr.InvalidState("inactive", "submit task")
	}
	if t.Expired(now) {
		return apperr.InvalidState("past deadline", "submit task")
	}

	if t.SubmissionBy(userID) != nil {
		return apperr.Conflict("you have already submitted this task")
	}

	required := t.Requirements.Images
	if required < 1 {
		required = 1
	}
	if len(images) < required {
		return apperr.Validation("images", fmt.Sprintf("task requires at least %d image(s)", required))
	}

	return nil
}

// NewSubmission returns a pending submission.
func NewSubmission(taskID, userID uuid.UUID, images []string, description string, loc *model.Location, now time.Time) model.Submission {
	return model.Submission{
		ID:          uuid.New(),
		TaskID:      taskID,
		UserID:      userID,
		Images:      images,
		Description: description,
		Location:    loc,
		Status:      model.SubmissionPending,
		SubmittedAt: now,
	}
}

// ApplyVerification settles a pending submission. It returns whether the
// submitter is due the task's points.
func ApplyVerification(s *model.Submission, actor model.Actor, status model.SubmissionStatus, feedback string, now time.Time) (bool, error) {
	if status != model.SubmissionVerified && status != model.SubmissionRejected {
		return false, apperr.Validation("status", "must be verified or rejected")
	}
	if s.Status != model.SubmissionPending {
		return false, apperr.InvalidState(string(s.Status), "verify submission")
	}

	verifier := actor.UserID
	at := now
	s.Status = status
	s.Feedback = feedback
	s.VerifiedBy = &verifier
	s.VerifiedAt = &at

	return status == model.SubmissionVerified && !s.Rewarded, nil
}
