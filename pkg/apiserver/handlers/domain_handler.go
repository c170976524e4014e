package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiserver/middleware"
	"github.com/agencydesk/mdconsole/pkg/console"
	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/model"
)

type DomainHandler struct {
	manager *console.Manager
	logger  *zap.Logger
}

func NewDomainHandler(manager *console.Manager, logger *zap.Logger) *DomainHandler {
	return &DomainHandler{manager: manager, logger: logger}
}

type entityResponse struct {
	Type         string   `json:"type"`
	Label        string   `json:"label"`
	Endpoint     string   `json:"endpoint"`
	DisplayField string   `json:"display_field"`
	OrderField   string   `json:"order_field,omitempty"`
	Required     []string `json:"required"`
	Removable    bool     `json:"removable"`
}

type relationResponse struct {
	Child      string `json:"child"`
	ForeignKey string `json:"foreign_key"`
	Parent     string `json:"parent"`
	ReportOnly bool   `json:"report_only"`
}

type domainResponse struct {
	Name      string             `json:"name"`
	Title     string             `json:"title"`
	Entities  []entityResponse   `json:"entities"`
	Relations []relationResponse `json:"relations"`
}

type reorderRequest struct {
	ParentID int64   `json:"parent_id"`
	Order    []int64 `json:"order" binding:"required,min=1"`
}

func toDomainResponse(h *hierarchy.Hierarchy) domainResponse {
	resp := domainResponse{Name: h.Name, Title: h.Title}
	for _, e := range h.Entities {
		resp.Entities = append(resp.Entities, entityResponse{
			Type:         string(e.Type),
			Label:        e.Label,
			Endpoint:     e.Endpoint,
			DisplayField: e.DisplayField,
			OrderField:   e.OrderField,
			Required:     e.Required,
			Removable:    e.Removable,
		})
	}
	for _, r := range h.Relations {
		resp.Relations = append(resp.Relations, relationResponse{
			Child:      string(r.Child),
			ForeignKey: r.ForeignKey,
			Parent:     string(r.Parent),
			ReportOnly: r.ReportOnly,
		})
	}
	return resp
}

func (h *DomainHandler) workspace(c *gin.Context) (*console.Workspace, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return nil, false
	}
	return h.manager.Workspace(claims.CompID), true
}

func (h *DomainHandler) ListDomains(c *gin.Context) {
	registry := h.manager.Registry()
	out := make([]domainResponse, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		d, _ := registry.Get(name)
		out = append(out, toDomainResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"domains": out})
}

func (h *DomainHandler) GetDomain(c *gin.Context) {
	d, ok := h.manager.Registry().Get(c.Param("domain"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown domain"})
		return
	}
	c.JSON(http.StatusOK, toDomainResponse(d))
}

func (h *DomainHandler) Load(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	counts, err := ws.Load(c.Request.Context(), c.Param("domain"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": c.Param("domain"), "counts": counts})
}

func (h *DomainHandler) List(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	records, err := ws.Collection(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "total": len(records)})
}

func (h *DomainHandler) Dependents(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	deps, err := ws.Dependents(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependents": deps, "count": len(deps)})
}

func (h *DomainHandler) Toggle(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	outcome, err := ws.RequestToggle(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// writeOutcome answers 202 while a confirmation is still needed and 200 once applied.
func writeOutcome(c *gin.Context, outcome *console.Outcome) {
	if outcome.Kind == console.OutcomeConfirmationRequired {
		c.JSON(http.StatusAccepted, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *DomainHandler) Confirm(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	outcome, err := ws.Confirm(c.Request.Context(), c.Param("ticket"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

func (h *DomainHandler) Cancel(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Cancel(c.Param("ticket")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": c.Param("ticket"), "cancelled": true})
}

func (h *DomainHandler) Create(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	record, err := ws.Save(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")), fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *DomainHandler) Update(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	record, err := ws.Update(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")), id, fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *DomainHandler) Delete(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ws.Remove(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DomainHandler) Reorder(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	records, err := ws.Reorder(c.Request.Context(), c.Param("domain"), model.EntityType(c.Param("type")), req.ParentID, req.Order)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}
