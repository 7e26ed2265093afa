package messaging

const (
	RoutingKeyComplaintCreated   = "complaint.created"
	RoutingKeyComplaintAssigned  = "complaint.assigned"
	RoutingKeyComplaintStatus    = "complaint.status.updated"
	RoutingKeyTaskCreated        = "task.created"
	RoutingKeySubmissionCreated  = "task.submission.created"
	RoutingKeySubmissionVerified = "task.submission.verified"
	RoutingKeyRewardAwarded      = "reward.awarded"
)

type ComplaintCreatedEvent struct {
	ComplaintID string `json:"complaint_id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	ReporterID  string `json:"reporter_id"`
	Timestamp   int64  `json:"timestamp"`
}

type ComplaintAssignedEvent struct {
	ComplaintID string `json:"complaint_id"`
	Title       string `json:"title"`
	ReporterID  string `json:"reporter_id"`
	Department  string `json:"department"`
	OfficerID   string `json:"officer_id,omitempty"`
	AssignedBy  string `json:"assigned_by"`
	Timestamp   int64  `json:"timestamp"`
}

type ComplaintStatusEvent struct {
	ComplaintID string `json:"complaint_id"`
	Title       string `json:"title"`
	ReporterID  string `json:"reporter_id"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Description string `json:"description,omitempty"`
	UpdatedBy   string `json:"updated_by"`
	Timestamp   int64  `json:"timestamp"`
}

type TaskCreatedEvent struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Points    int    `json:"points"`
	CreatedBy string `json:"created_by"`
	Timestamp int64  `json:"timestamp"`
}

type SubmissionCreatedEvent struct {
	TaskID       string `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	Timestamp    int64  `json:"timestamp"`
}

type SubmissionVerifiedEvent struct {
	TaskID       string `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	Feedback     string `json:"feedback,omitempty"`
	VerifiedBy   string `json:"verified_by"`
	Timestamp    int64  `json:"timestamp"`
}

type RewardAwardedEvent struct {
	UserID    string `json:"user_id"`
	Source    string `json:"source"`
	SourceID  string `json:"source_id"`
	Points    int    `json:"points"`
	Timestamp int64  `json:"timestamp"`
}
