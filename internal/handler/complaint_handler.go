package handler

import (
	"net/http"
	"strconv"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/model"
	"prakriti-service/internal/service"

	"github.com/gin-gonic/gin"
)

type ComplaintHandler struct {
	complaintService *service.ComplaintService
	log              *logger.Logger
}

func NewComplaintHandler(complaintService *service.ComplaintService, log *logger.Logger) *ComplaintHandler {
	return &ComplaintHandler{complaintService: complaintService, log: log}
}

// Handles POST /complaints - files a complaint for the caller.
func (h *ComplaintHandler) CreateComplaint(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req model.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	complaint, err := h.complaintService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Complaint submitted successfully",
		"complaint": complaint,
	})
}

// Handles GET /complaints - lists complaints with optional status, category
// and priority filters.
func (h *ComplaintHandler) GetComplaints(c *gin.Context) {
	filter := model.ComplaintFilter{
		Status:   model.ComplaintStatus(c.Query("status")),
		Category: model.ComplaintCategory(c.Query("category")),
		Priority: model.Priority(c.Query("priority")),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}

	response, err := h.complaintService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Handles GET /complaints/my - the caller's own complaints.
func (h *ComplaintHandler) GetMyComplaints(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	response, err := h.complaintService.Mine(c.Request.Context(), actor, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Handles GET /complaints/:id - a complaint with its timeline.
func (h *ComplaintHandler) GetComplaintByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	complaint, err := h.complaintService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Handles PATCH /complaints/:id/status - moves the complaint along its
// lifecycle (admin/government only).
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	complaint, err := h.complaintService.Transition(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Status updated successfully",
		"complaint": complaint,
	})
}

// Handles PATCH /complaints/:id/assign - records the handling department.
func (h *ComplaintHandler) Assign(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	complaint, err := h.complaintService.Assign(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Complaint assigned successfully",
		"complaint": complaint,
	})
}

// Handles POST /complaints/:id/feedback - the reporter rates a resolved
// complaint.
func (h *ComplaintHandler) AddFeedback(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	complaint, err := h.complaintService.AddFeedback(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Feedback submitted successfully",
		"complaint": complaint,
	})
}

// queryInt returns 0 for a missing or malformed value so services apply
// their defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
