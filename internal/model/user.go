package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleGovernment Role = "government"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleGovernment:
		return true
	}
	return false
}

// Actor is the resolved identity of the caller of a lifecycle operation.
type Actor struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}

// CanManage reports whether the actor may triage complaints and tasks.
func (a Actor) CanManage() bool {
	return a.Role == RoleAdmin || a.Role == RoleGovernment
}

type Streak struct {
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

type UserStats struct {
	PointsEarned        int `json:"points_earned"`
	TasksCompleted      int `json:"tasks_completed"`
	ComplaintsSubmitted int `json:"complaints_submitted"`
}

type User struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Level      int       `json:"level"`
	Experience int       `json:"experience"`
	Streak     Streak    `json:"streak"`
	Stats      UserStats `json:"stats"`
	CreatedAt  time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Points   int       `json:"points"`
	Level    int       `json:"level,omitempty"`
}
