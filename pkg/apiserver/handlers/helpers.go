package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agencydesk/mdconsole/pkg/apiclient"
	"github.com/agencydesk/mdconsole/pkg/cascade"
	"github.com/agencydesk/mdconsole/pkg/console"
	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/inflight"
	"github.com/agencydesk/mdconsole/pkg/ordering"
)

const timeRFC3339Nano = time.RFC3339Nano

func parseLimit(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseOffset(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeRFC3339Nano)
}

// writeError maps console, cascade and upstream errors onto HTTP answers.
func writeError(c *gin.Context, err error) {
	var validationErr *cascade.ValidationError
	var cascadeErr *cascade.CascadeError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Message, "field": validationErr.Field})
	case errors.As(err, &cascadeErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":          "status change failed",
			"details":        err.Error(),
			"failed":         len(cascadeErr.Failed),
			"reconciliation": cascadeErr.Reconciliation,
		})
	case errors.Is(err, console.ErrUnknownDomain),
		errors.Is(err, hierarchy.ErrUnknownEntity),
		errors.Is(err, console.ErrRecordNotFound),
		errors.Is(err, console.ErrConfirmationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, inflight.ErrInFlight),
		errors.Is(err, console.ErrConfirmationExpired),
		errors.Is(err, console.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, console.ErrNotRemovable),
		errors.Is(err, console.ErrNotOrdered),
		errors.Is(err, ordering.ErrNotPermutation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apiclient.IsAuthentication(err), errors.Is(err, apiclient.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		if apiErr, ok := apiclient.AsAPIError(err); ok {
			status := http.StatusBadGateway
			switch {
			case apiErr.NotFound():
				status = http.StatusNotFound
			case apiErr.StatusCode == http.StatusConflict:
				status = http.StatusConflict
			case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": apiErr.Message, "upstream_status": apiErr.StatusCode})
			return
		}
		if apiclient.IsNetwork(err) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "master-data API unreachable", "details": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
