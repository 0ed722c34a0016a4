package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/service"
)

type createSettlementRequest struct {
	GroupID string `json:"group_id" binding:"required"`
	service.CreateSettlementInput
}

// CreateSettlement handles POST /api/settlements.
func (h *Handler) CreateSettlement(c *gin.Context) {
	var req createSettlementRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Settlements.CreateSettlement(c.Request.Context(), middleware.UserID(c),
		req.GroupID, req.CreateSettlementInput)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetSettlement handles GET /api/settlements/:id.
func (h *Handler) GetSettlement(c *gin.Context) {
	settlement, err := h.Settlements.GetSettlement(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

// UpdateSettlement handles PATCH /api/settlements/:id.
func (h *Handler) UpdateSettlement(c *gin.Context) {
	var req service.UpdateSettlementInput
	if !bindJSON(c, &req) {
		return
	}

	settlement, err := h.Settlements.UpdateSettlement(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

// DeleteSettlement handles DELETE /api/settlements/:id.
func (h *Handler) DeleteSettlement(c *gin.Context) {
	if err := h.Settlements.DeleteSettlement(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListSettlements handles GET /api/groups/:groupId/settlements.
func (h *Handler) ListSettlements(c *gin.Context) {
	settlements, err := h.Settlements.ListSettlements(c.Request.Context(), middleware.UserID(c), c.Param("groupId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, settlements)
}

// GetSettlementHistory handles GET /api/groups/:groupId/settlements/history.
// The user_id query selects whose history to view, defaulting to the actor.
func (h *Handler) GetSettlementHistory(c *gin.Context) {
	actorID := middleware.UserID(c)
	userID := c.Query("user_id")
	if userID == "" {
		userID = actorID
	}

	history, err := h.Settlements.GetUserHistory(c.Request.Context(), actorID, c.Param("groupId"), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
