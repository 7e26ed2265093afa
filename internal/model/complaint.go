package model

import (
	"time"

	"github.com/google/uuid"
)

type ComplaintCategory string

const (
	CategoryIllegalDumping  ComplaintCategory = "illegal_dumping"
	CategoryWaterPollution  ComplaintCategory = "water_pollution"
	CategoryAirPollution    ComplaintCategory = "air_pollution"
	CategoryNoisePollution  ComplaintCategory = "noise_pollution"
	CategoryDeforestation   ComplaintCategory = "deforestation"
	CategoryWasteManagement ComplaintCategory = "waste_management"
	CategoryOther           ComplaintCategory = "other"
)

var ComplaintCategories = []ComplaintCategory{
	CategoryIllegalDumping,
	CategoryWaterPollution,
	CategoryAirPollution,
	CategoryNoisePollution,
	CategoryDeforestation,
	CategoryWasteManagement,
	CategoryOther,
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

type ComplaintStatus string

const (
	StatusPending      ComplaintStatus = "pending"
	StatusAcknowledged ComplaintStatus = "acknowledged"
	StatusInProgress   ComplaintStatus = "in_progress"
	StatusResolved     ComplaintStatus = "resolved"
	StatusRejected     ComplaintStatus = "rejected"
)

// TimelineAssigned marks an assignment in the timeline. It is not a status.
const TimelineAssigned = "assigned"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address,omitempty"`
	City     string  `json:"city,omitempty"`
	State    string  `json:"state,omitempty"`
	Pincode  string  `json:"pincode,omitempty"`
	Landmark string  `json:"landmark,omitempty"`
	Country  string  `json:"country,omitempty"`
}

type Assignment struct {
	Department string     `json:"department"`
	Officer    *uuid.UUID `json:"officer,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
}

type Acknowledgment struct {
	Received   bool       `json:"received"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	Message    string     `json:"message,omitempty"`
	Officer    string     `json:"officer,omitempty"`
}

type Action struct {
	Taken       bool       `json:"taken"`
	Description string     `json:"description,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
}

type Resolution struct {
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Description string     `json:"description,omitempty"`
}

type GovernmentResponse struct {
	Acknowledgment Acknowledgment `json:"acknowledgment"`
	Action         Action         `json:"action"`
	Resolution     Resolution     `json:"resolution"`
}

type TimelineEntry struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	UpdatedBy   uuid.UUID `json:"updated_by"`
}

type Reward struct {
	Points    int        `json:"points"`
	Awarded   bool       `json:"awarded"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Complaint struct {
	ID                 uuid.UUID          `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Category           ComplaintCategory  `json:"category"`
	Severity           Severity           `json:"severity"`
	Location           Location           `json:"location"`
	Images             []string           `json:"images"`
	ReportedBy         uuid.UUID          `json:"reported_by"`
	Status             ComplaintStatus    `json:"status"`
	Priority           Priority           `json:"priority"`
	AssignedTo         *Assignment        `json:"assigned_to,omitempty"`
	GovernmentResponse GovernmentResponse `json:"government_response"`
	Timeline           []TimelineEntry    `json:"timeline"`
	Reward             Reward             `json:"reward"`
	Feedback           *Feedback          `json:"feedback,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type ComplaintFilter struct {
	Status     ComplaintStatus
	Category   ComplaintCategory
	Priority   Priority
	ReportedBy *uuid.UUID
	Page       int
	Limit      int
}
