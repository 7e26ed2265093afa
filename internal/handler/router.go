package handler

import (
	"prakriti-service/internal/logger"
	"prakriti-service/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Complaint    *ComplaintHandler
	Task         *TaskHandler
	User         *UserHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
}

// RouterConfig carries the router's collaborators. Gatherer defaults to the
// global Prometheus registry.
type RouterConfig struct {
	Auth     *Authenticator
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *logger.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Log), Instrument(cfg.Metrics))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/health", h.Admin.Health)

	optional, required := cfg.Auth.Optional(), cfg.Auth.Required()

	complaints := r.Group("/complaints")
	{
		complaints.POST("", required, h.Complaint.CreateComplaint)
		complaints.GET("", optional, h.Complaint.GetComplaints)
		complaints.GET("/my", required, h.Complaint.GetMyComplaints)
		complaints.GET("/my-complaints", required, h.Complaint.GetMyComplaints)
		complaints.GET("/:id", optional, h.Complaint.GetComplaintByID)
		complaints.PATCH("/:id/status", required, h.Complaint.UpdateStatus)
		complaints.PUT("/:id/status", required, h.Complaint.UpdateStatus)
		complaints.PATCH("/:id/assign", required, h.Complaint.Assign)
		complaints.PUT("/:id/assign", required, h.Complaint.Assign)
		complaints.POST("/:id/feedback", required, h.Complaint.AddFeedback)
	}

	tasks := r.Group("/tasks")
	{
		tasks.POST("", required, h.Task.CreateTask)
		tasks.GET("", optional, h.Task.GetTasks)
		tasks.GET("/my-submissions", required, h.Task.GetMySubmissions)
		tasks.GET("/:id", optional, h.Task.GetTaskByID)
		tasks.POST("/:id/submit", required, h.Task.SubmitTask)
		tasks.PUT("/:id/verify/:submissionId", required, h.Task.VerifySubmission)
		tasks.PATCH("/:id/verify/:submissionId", required, h.Task.VerifySubmission)
	}

	r.GET("/users/me", required, h.User.GetMe)
	r.GET("/leaderboard", optional, h.User.GetLeaderboard)

	notifications := r.Group("/notifications")
	{
		notifications.GET("", required, h.Notification.GetNotifications)
		notifications.GET("/stream", cfg.Auth.Stream(), h.Notification.StreamNotifications)
		notifications.PATCH("/:id/read", required, h.Notification.MarkAsRead)
		notifications.PATCH("/read-all", required, h.Notification.MarkAllAsRead)
	}

	admin := r.Group("/admin", required)
	{
		admin.GET("/outbox/stats", h.Admin.GetOutboxStats)
	}

	return r
}
