package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/model"
	"prakriti-service/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService *service.TaskService
	log         *logger.Logger
}

func NewTaskHandler(taskService *service.TaskService, log *logger.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, log: log}
}

// Handles POST /tasks - publishes a task (admin/government only).
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req model.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    task,
	})
}

// Handles GET /tasks - pages through active tasks, or searches around a
// point given as lat & lng (or location=lng,lat) with an optional radius in
// meters.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	category := model.TaskCategory(c.Query("category"))

	lat, lng, near, err := parsePoint(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if near {
		var radius float64
		if s := c.Query("radius"); s != "" {
			radius, err = strconv.ParseFloat(s, 64)
			if err != nil {
				badRequest(c, "invalid radius")
				return
			}
		}

		tasks, err := h.taskService.Nearby(c.Request.Context(), model.NearbyQuery{
			Lat:          lat,
			Lng:          lng,
			RadiusMeters: radius,
			Category:     category,
		})
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
		return
	}

	response, err := h.taskService.List(c.Request.Context(), model.TaskFilter{
		Category: category,
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func parsePoint(c *gin.Context) (lat, lng float64, ok bool, err error) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if loc := c.Query("location"); loc != "" && latStr == "" && lngStr == "" {
		parts := strings.Split(loc, ",")
		if len(parts) != 2 {
			return 0, 0, false, errors.New("location must be lng,lat")
		}
		lngStr, latStr = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	if latStr == "" && lngStr == "" {
		return 0, 0, false, nil
	}
	if latStr == "" || lngStr == "" {
		return 0, 0, false, errors.New("lat and lng must be given together")
	}

	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, false, errors.New("invalid lat")
	}
	lng, err = strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, false, errors.New("invalid lng")
	}
	return lat, lng, true, nil
}

// Handles GET /tasks/my-submissions - the caller's submissions.
func (h *TaskHandler) GetMySubmissions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	submissions, err := h.taskService.MySubmissions(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": submissions})
}

// Handles GET /tasks/:id - a task with its submissions.
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Handles POST /tasks/:id/submit - the caller's proof of completion.
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	task, err := h.taskService.Submit(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task submitted successfully",
		"task":    task,
	})
}

// Handles PUT /tasks/:id/verify/:submissionId - settles a pending
// submission (admin/government only).
func (h *TaskHandler) VerifySubmission(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	taskID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	submissionID, ok := paramUUID(c, "submissionId")
	if !ok {
		return
	}

	var req model.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	task, err := h.taskService.Verify(c.Request.Context(), actor, taskID, submissionID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Submission " + string(req.Status),
		"task":    task,
	})
}
