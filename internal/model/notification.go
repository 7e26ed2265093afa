package model

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	ComplaintID *uuid.UUID `json:"complaint_id,omitempty"`
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// RewardSource identifies which lifecycle event produced an award.
type RewardSource string

const (
	SourceComplaint      RewardSource = "complaint"
	SourceTaskSubmission RewardSource = "task_submission"
)

// RewardEntry is the audit row written for every landed award.
type RewardEntry struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Source    RewardSource `json:"source"`
	SourceID  uuid.UUID    `json:"source_id"`
	Points    int          `json:"points"`
	Counter   string       `json:"counter"`
	CreatedAt time.Time    `json:"created_at"`
}
