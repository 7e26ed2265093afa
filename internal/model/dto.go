package model

import (
	"time"

	"github.com/google/uuid"
)

// Request/Response DTOs

type LocationInput struct {
	Lat      *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng      *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Address  string   `json:"address" validate:"max=200"`
	City     string   `json:"city" validate:"max=100"`
	State    string   `json:"state" validate:"max=100"`
	Pincode  string   `json:"pincode" validate:"max=12"`
	Landmark string   `json:"landmark" validate:"max=200"`
	Country  string   `json:"country" validate:"max=100"`
}

// Location converts validated input into a stored location.
func (l *LocationInput) Location() Location {
	loc := Location{
		Address:  l.Address,
		City:     l.City,
		State:    l.State,
		Pincode:  l.Pincode,
		Landmark: l.Landmark,
		Country:  l.Country,
	}
	if l.Lat != nil {
		loc.Lat = *l.Lat
	}
	if l.Lng != nil {
		loc.Lng = *l.Lng
	}
	return loc
}

type CreateComplaintRequest struct {
	Title       string            `json:"title" validate:"required,max=100"`
	Description string            `json:"description" validate:"required,max=1000"`
	Category    ComplaintCategory `json:"category" validate:"required,oneof=illegal_dumping water_pollution air_pollution noise_pollution deforestation waste_management other"`
	Severity    Severity          `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Location    *LocationInput    `json:"location" validate:"required"`
	Images      []string          `json:"images" validate:"max=10,dive,required,max=2048"`
}

type TransitionRequest struct {
	Status      ComplaintStatus `json:"status" validate:"required,oneof=acknowledged in_progress resolved rejected"`
	Description string          `json:"description" validate:"max=1000"`
}

type AssignRequest struct {
	Department string     `json:"department" validate:"required,max=100"`
	OfficerID  *uuid.UUID `json:"officer_id"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

type RequirementsInput struct {
	Images      *int     `json:"images" validate:"omitempty,min=1,max=5"`
	Description string   `json:"description" validate:"max=500"`
	Checklist   []string `json:"checklist" validate:"max=20,dive,required,max=200"`
}

type CreateTaskRequest struct {
	Title        string             `json:"title" validate:"required,max=100"`
	Description  string             `json:"description" validate:"required,max=500"`
	Category     TaskCategory       `json:"category" validate:"required,oneof=waste_segregation tree_planting water_conservation energy_saving cleanup_drive awareness_campaign"`
	Difficulty   Difficulty         `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Points       int                `json:"points" validate:"required,min=10,max=1000"`
	Location     *LocationInput     `json:"location" validate:"required"`
	Requirements *RequirementsInput `json:"requirements"`
	Deadline     *time.Time         `json:"deadline"`
}

type SubmitTaskRequest struct {
	Images      []string       `json:"images" validate:"required,min=1,max=5,dive,required,max=2048"`
	Description string         `json:"description" validate:"max=1000"`
	Location    *LocationInput `json:"location"`
}

type VerifyRequest struct {
	Status   SubmissionStatus `json:"status" validate:"required,oneof=verified rejected"`
	Feedback string           `json:"feedback" validate:"max=500"`
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Page: page, Pages: pages, Limit: limit}
}

type ComplaintListResponse struct {
	Complaints []Complaint `json:"complaints"`
	Pagination Pagination  `json:"pagination"`
}

type TaskListResponse struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
	Source  string             `json:"source"`
}

// UserProfile is the caller's own view of their progress.
type UserProfile struct {
	User
	NextLevelAt   *int          `json:"next_level_at,omitempty"`
	RecentRewards []RewardEntry `json:"recent_rewards"`
}
