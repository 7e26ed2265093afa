package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskCategory string

const (
	TaskWasteSegregation  TaskCategory = "waste_segregation"
	TaskTreePlanting      TaskCategory = "tree_planting"
	TaskWaterConservation TaskCategory = "water_conservation"
	TaskEnergySaving      TaskCategory = "energy_saving"
	TaskCleanupDrive      TaskCategory = "cleanup_drive"
	TaskAwarenessCampaign TaskCategory = "awareness_campaign"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionVerified SubmissionStatus = "verified"
	SubmissionRejected SubmissionStatus = "rejected"
)

const DefaultCountry = "India"

type Requirements struct {
	Images      int      `json:"images"`
	Description string   `json:"description,omitempty"`
	Checklist   []string `json:"checklist,omitempty"`
}

type Statistics struct {
	TotalSubmissions    int     `json:"total_submissions"`
	VerifiedSubmissions int     `json:"verified_submissions"`
	CompletionRate      float64 `json:"completion_rate"`
}

type Task struct {
	ID             uuid.UUID    `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       TaskCategory `json:"category"`
	Difficulty     Difficulty   `json:"difficulty"`
	Points         int          `json:"points"`
	Location       Location     `json:"location"`
	Requirements   Requirements `json:"requirements"`
	Deadline       *time.Time   `json:"deadline,omitempty"`
	IsActive       bool         `json:"is_active"`
	CreatedBy      uuid.UUID    `json:"created_by"`
	Submissions    []Submission `json:"submissions,omitempty"`
	Statistics     Statistics   `json:"statistics"`
	DistanceMeters *float64     `json:"distance_meters,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Expired reports whether the deadline has passed at now.
func (t *Task) Expired(now time.Time) bool {
	return t.Deadline != nil && now.After(*t.Deadline)
}

// FindSubmission returns the submission with the given id, or nil.
func (t *Task) FindSubmission(id uuid.UUID) *Submission {
	for i := range t.Submissions {
		if t.Submissions[i].ID == id {
			return &t.Submissions[i]
		}
	}
	return nil
}

// SubmissionBy returns the submission made by the user, or nil.
func (t *Task) SubmissionBy(userID uuid.UUID) *Submission {
	for i := range t.Submissions {
		if t.Submissions[i].UserID == userID {
			return &t.Submissions[i]
		}
	}
	return nil
}

type Submission struct {
	ID          uuid.UUID        `json:"id"`
	TaskID      uuid.UUID        `json:"task_id"`
	UserID      uuid.UUID        `json:"user_id"`
	Images      []string         `json:"images"`
	Description string           `json:"description,omitempty"`
	Location    *Location        `json:"location,omitempty"`
	Status      SubmissionStatus `json:"status"`
	VerifiedBy  *uuid.UUID       `json:"verified_by,omitempty"`
	VerifiedAt  *time.Time       `json:"verified_at,omitempty"`
	Feedback    string           `json:"feedback,omitempty"`
	Rewarded    bool             `json:"rewarded"`
	RewardedAt  *time.Time       `json:"rewarded_at,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

type TaskSummary struct {
	ID       uuid.UUID    `json:"id"`
	Title    string       `json:"title"`
	Category TaskCategory `json:"category"`
	Points   int          `json:"points"`
}

type UserSubmission struct {
	Task       TaskSummary `json:"task"`
	Submission Submission  `json:"submission"`
}

type TaskFilter struct {
	Category TaskCategory
	Page     int
	Limit    int
}

type NearbyQuery struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
	Category     TaskCategory
}
