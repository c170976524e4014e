package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiserver/middleware"
	"github.com/agencydesk/mdconsole/pkg/console"
	"github.com/agencydesk/mdconsole/pkg/model"
)

type CascadeHandler struct {
	manager *console.Manager
	logger  *zap.Logger
}

func NewCascadeHandler(manager *console.Manager, logger *zap.Logger) *CascadeHandler {
	return &CascadeHandler{manager: manager, logger: logger}
}

type cascadeRunResponse struct {
	ID           string      `json:"id"`
	UserID       int64       `json:"user_id"`
	Domain       string      `json:"domain"`
	RootType     string      `json:"root_type"`
	RootID       int64       `json:"root_id"`
	NewStatus    int         `json:"new_status"`
	Outcome      string      `json:"outcome"`
	AffectedIDs  []int64     `json:"affected_ids"`
	Mutations    model.JSONB `json:"mutations,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    string      `json:"created_at"`
}

func (h *CascadeHandler) List(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))
	runs, total, err := h.manager.Workspace(claims.CompID).Cascades(c.Request.Context(), c.Query("domain"), limit, offset)
	if err != nil {
		h.logger.Error("failed to list cascades", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cascades"})
		return
	}

	out := make([]cascadeRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, cascadeRunResponse{
			ID:           run.ID.String(),
			UserID:       run.UserID,
			Domain:       run.Domain,
			RootType:     run.RootType,
			RootID:       run.RootID,
			NewStatus:    run.NewStatus,
			Outcome:      string(run.Outcome),
			AffectedIDs:  []int64(run.AffectedIDs),
			Mutations:    run.Mutations,
			ErrorMessage: run.ErrorMessage,
			CreatedAt:    formatTime(run.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total, "limit": limit, "offset": offset})
}
