package handler

import (
	"net/http"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *service.UserService
	log         *logger.Logger
}

func NewUserHandler(userService *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// Handles GET /users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	profile, err := h.userService.Me(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Handles GET /leaderboard?limit=N
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	response, err := h.userService.Leaderboard(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
