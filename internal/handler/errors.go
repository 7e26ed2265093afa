package handler

import (
	"errors"
	"net/http"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes the status for a domain error. Anything unrecognized
// is logged and reported as 500 without details.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var (
		verr     *apperr.ValidationError
		authErr  *apperr.AuthorizationError
		notFound *apperr.NotFoundError
		conflict *apperr.ConflictError
		invalid  *apperr.InvalidStateError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": authErr.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
	default:
		entry := log.WithField("path", c.FullPath())
		if actor, ok := actorFrom(c); ok {
			entry = log.WithUserID(actor.UserID.String()).WithField("path", c.FullPath())
		}
		requestID, _ := c.Get(requestIDKey)
		entry.WithError(err).WithField("request_id", requestID).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// paramUUID parses a path parameter, writing 400 on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// mustActor returns the authenticated caller or writes 401.
func mustActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return actor, ok
}
