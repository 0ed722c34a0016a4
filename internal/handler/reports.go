package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splitledger/splitledger/internal/middleware"
)

// GetGroupBalances handles GET /api/groups/:groupId/balances.
func (h *Handler) GetGroupBalances(c *gin.Context) {
	balances, err := h.Reports.GetGroupBalances(c.Request.Context(), middleware.UserID(c), c.Param("groupId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// GetUserBalances handles GET /api/balances.
func (h *Handler) GetUserBalances(c *gin.Context) {
	summary, err := h.Reports.GetUserBalances(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ExportCSV handles GET /api/groups/:groupId/export/csv.
func (h *Handler) ExportCSV(c *gin.Context) {
	groupID := c.Param("groupId")
	data, err := h.Reports.ExportCSV(c.Request.Context(), middleware.UserID(c), groupID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=group-%s-expenses.csv", groupID))
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportXLSX handles GET /api/groups/:groupId/export/xlsx.
func (h *Handler) ExportXLSX(c *gin.Context) {
	groupID := c.Param("groupId")
	data, err := h.Reports.ExportXLSX(c.Request.Context(), middleware.UserID(c), groupID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=group-%s-expenses.xlsx", groupID))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
