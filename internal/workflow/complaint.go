package workflow

import (
	"fmt"
	"strings"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"

	"github.com/google/uuid"
)

// transitions lists the statuses reachable from each status. Terminal
// statuses have no entry.
var transitions = map[model.ComplaintStatus][]model.ComplaintStatus{
	model.StatusPending:      {model.StatusAcknowledged, model.StatusInProgress, model.StatusResolved, model.StatusRejected},
	model.StatusAcknowledged: {model.StatusInProgress, model.StatusResolved, model.StatusRejected},
	model.StatusInProgress:   {model.StatusResolved, model.StatusRejected},
}

var defaultDescriptions = map[model.ComplaintStatus]string{
	model.StatusAcknowledged: "Complaint acknowledged",
	model.StatusInProgress:   "Action in progress",
	model.StatusResolved:     "Complaint resolved",
	model.StatusRejected:     "Complaint rejected",
}

// CanTransition reports whether from -> to is in the allowed graph.
func CanTransition(from, to model.ComplaintStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func Terminal(s model.ComplaintStatus) bool {
	return s == model.StatusResolved || s == model.StatusRejected
}

// ValidTarget reports whether status may be requested by a transition.
func ValidTarget(s model.ComplaintStatus) bool {
	_, ok := defaultDescriptions[s]
	return ok
}

// Outcome is what a transition changed on the complaint.
type Outcome struct {
	From     model.ComplaintStatus
	Entry    model.TimelineEntry
	AwardDue bool
}

// NewComplaint builds a pending complaint with its first timeline entry.
func NewComplaint(reporter uuid.UUID, title, description string, category model.ComplaintCategory,
	severity model.Severity, priority model.Priority, loc model.Location, images []string, now time.Time) *model.Complaint {
	if images == nil {
		images = []string{}
	}
	c := &model.Complaint{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Category:    category,
		Severity:    severity,
		Location:    loc,
		Images:      images,
		ReportedBy:  reporter,
		Status:      model.StatusPending,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.Timeline = []model.TimelineEntry{{
		ID:          uuid.New(),
		Status:      string(model.StatusPending),
		Description: "Complaint submitted successfully",
		Timestamp:   now,
		UpdatedBy:   reporter,
	}}
	return c
}

// ApplyTransition moves c to the target status and records the matching
// government response stage.
func ApplyTransition(c *model.Complaint, actor model.Actor, to model.ComplaintStatus, description string, now time.Time) (Outcome, error) {
	if !ValidTarget(to) {
		return Outcome{}, apperr.Validation("status", "must be one of acknowledged, in_progress, resolved, rejected")
	}
	if !CanTransition(c.Status, to) {
		return Outcome{}, apperr.InvalidState(string(c.Status), fmt.Sprintf("move complaint to %s", to))
	}

	at := now
	switch to {
	case model.StatusAcknowledged:
		c.GovernmentResponse.Acknowledgment = model.Acknowledgment{
			Received:   true,
			ReceivedAt: &at,
			Message:    description,
			Officer:    actor.Username,
		}
	case model.StatusInProgress:
		c.GovernmentResponse.Action = model.Action{
			Taken:       true,
			Description: description,
			TakenAt:     &at,
		}
	case model.StatusResolved:
		c.GovernmentResponse.Resolution = model.Resolution{
			Resolved:    true,
			ResolvedAt:  &at,
			Description: description,
		}
	}

	if description == "" {
		description = defaultDescriptions[to]
	}

	out := Outcome{From: c.Status}
	c.Status = to
	c.UpdatedAt = now

	out.Entry = model.TimelineEntry{
		ID:          uuid.New(),
		Status:      string(to),
		Description: description,
		Timestamp:   now,
		UpdatedBy:   actor.UserID,
	}
	c.Timeline = append(c.Timeline, out.Entry)
	out.AwardDue = to == model.StatusResolved && !c.Reward.Awarded

	return out, nil
}

// ApplyAssignment records who handles the complaint. Status is unchanged.
func ApplyAssignment(c *model.Complaint, actor model.Actor, department string, officer *uuid.UUID, now time.Time) model.TimelineEntry {
	c.AssignedTo = &model.Assignment{
		Department: department,
		Officer:    officer,
		AssignedAt: now,
	}
	c.UpdatedAt = now

	entry := model.TimelineEntry{
		ID:          uuid.New(),
		Status:      model.TimelineAssigned,
		Description: "Complaint assigned to " + department,
		Timestamp:   now,
		UpdatedBy:   actor.UserID,
	}
	c.Timeline = append(c.Timeline, entry)
	return entry
}

// ApplyFeedback overwrites the reporter's feedback on a resolved complaint.
func ApplyFeedback(c *model.Complaint, actor model.Actor, rating int, comment string, now time.Time) error {
	if c.ReportedBy != actor.UserID {
		return apperr.Unauthorized("only the reporter can give feedback on a complaint")
	}
	if c.Status != model.StatusResolved {
		return apperr.InvalidState(string(c.Status), "add feedback")
	}
	if rating < 1 || rating > 5 {
		return apperr.Validation("rating", "must be between 1 and 5")
	}

	c.Feedback = &model.Feedback{
		Rating:      rating,
		Comment:     comment,
		SubmittedAt: now,
	}
	c.UpdatedAt = now
	return nil
}
