package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/storage"
)

// CreateExpense handles POST /api/groups/:groupId/expenses.
func (h *Handler) CreateExpense(c *gin.Context) {
	var req service.CreateExpenseInput
	if !bindJSON(c, &req) {
		return
	}

	expense, err := h.Expenses.CreateExpense(c.Request.Context(), middleware.UserID(c), c.Param("groupId"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

// ListExpenses handles GET /api/groups/:groupId/expenses with optional
// start_date, end_date (RFC 3339 or YYYY-MM-DD) and is_settled filters.
func (h *Handler) ListExpenses(c *gin.Context) {
	var filter storage.ExpenseFilter

	if v := c.Query("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		filter.EndDate = &t
	}
	if v := c.Query("is_settled"); v != "" {
		settled, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid is_settled"})
			return
		}
		filter.IsSettled = &settled
	}

	expenses, err := h.Expenses.ListExpenses(c.Request.Context(), middleware.UserID(c), c.Param("groupId"), filter)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// GetUserExpenses handles GET /api/groups/:groupId/expenses/mine.
func (h *Handler) GetUserExpenses(c *gin.Context) {
	summary, err := h.Expenses.GetUserExpenses(c.Request.Context(), middleware.UserID(c), c.Param("groupId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetExpense handles GET /api/expenses/:id.
func (h *Handler) GetExpense(c *gin.Context) {
	expense, err := h.Expenses.GetExpense(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

// UpdateExpense handles PATCH /api/expenses/:id.
func (h *Handler) UpdateExpense(c *gin.Context) {
	var req service.UpdateExpenseInput
	if !bindJSON(c, &req) {
		return
	}

	expense, err := h.Expenses.UpdateExpense(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

// DeleteExpense handles DELETE /api/expenses/:id.
func (h *Handler) DeleteExpense(c *gin.Context) {
	if err := h.Expenses.DeleteExpense(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListExpenseSplits handles GET /api/expenses/:id/splits.
func (h *Handler) ListExpenseSplits(c *gin.Context) {
	splits, err := h.Expenses.ListExpenseSplits(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, splits)
}

// SettleSplit handles PATCH /api/splits/:id/settle.
func (h *Handler) SettleSplit(c *gin.Context) {
	split, err := h.Expenses.SettleSplit(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, split)
}

type paySplitRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// PaySplit handles PATCH /api/splits/:id/partial-payment.
func (h *Handler) PaySplit(c *gin.Context) {
	var req paySplitRequest
	if !bindJSON(c, &req) {
		return
	}

	split, err := h.Expenses.PaySplit(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, split)
}

// GetMySplits handles GET /api/splits/mine.
func (h *Handler) GetMySplits(c *gin.Context) {
	splits, err := h.Expenses.GetMyUnsettledSplits(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, splits)
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
