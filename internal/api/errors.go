package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/assistant"
	"meeting-resource-backend/internal/lock"
	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
}

// fail maps a service error onto a status code and a JSON body.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *schedule.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Detail, "constraint": verr.Constraint}
		if verr.Class != "" {
			body["conflict"] = gin.H{"class": verr.Class, "id": verr.RecordID}
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, lock.ErrNotAcquired):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resource is busy, try again"})
	case errors.Is(err, assistant.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant is not configured"})
	case errors.Is(err, assistant.ErrMalformedResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not understand the request", "detail": logger.Excerpt(err.Error(), 200)})
	case errors.Is(err, assistant.ErrUnavailable):
		h.log.Warn("assistant call failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant is unavailable", "detail": logger.Excerpt(err.Error(), 200)})
	default:
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func int64Query(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// timeQuery reads an instant given as RFC3339 or as a plain date. Missing
// values fall back to def.
func timeQuery(c *gin.Context, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, v)
}
