// Package router wires the HTTP routes to their handlers and middleware.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/handler"
	"github.com/splitledger/splitledger/internal/middleware"
)

// New builds the gin engine with the full route surface.
func New(h *handler.Handler, tokens *auth.JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Observe())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	authed := api.Group("")
	authed.Use(middleware.Auth(tokens))

	authed.GET("/me", h.Me)
	authed.GET("/balances", h.GetUserBalances)

	groups := authed.Group("/groups")
	{
		groups.POST("", h.CreateGroup)
		groups.GET("", h.ListGroups)
		groups.GET("/:groupId", h.GetGroup)
		groups.PATCH("/:groupId", h.UpdateGroup)
		groups.DELETE("/:groupId", h.DeleteGroup)

		groups.POST("/:groupId/members", h.AddMember)
		groups.GET("/:groupId/members", h.ListMembers)
		groups.PATCH("/:groupId/members/:memberId/role", h.UpdateMemberRole)
		groups.DELETE("/:groupId/members/:memberId", h.RemoveMember)
		groups.POST("/:groupId/leave", h.LeaveGroup)

		groups.POST("/:groupId/expenses", h.CreateExpense)
		groups.GET("/:groupId/expenses", h.ListExpenses)
		groups.GET("/:groupId/expenses/mine", h.GetUserExpenses)

		groups.GET("/:groupId/settlements", h.ListSettlements)
		groups.GET("/:groupId/settlements/history", h.GetSettlementHistory)

		groups.GET("/:groupId/balances", h.GetGroupBalances)
		groups.GET("/:groupId/export/csv", h.ExportCSV)
		groups.GET("/:groupId/export/xlsx", h.ExportXLSX)
	}

	expenses := authed.Group("/expenses")
	{
		expenses.GET("/:id", h.GetExpense)
		expenses.PATCH("/:id", h.UpdateExpense)
		expenses.DELETE("/:id", h.DeleteExpense)
		expenses.GET("/:id/splits", h.ListExpenseSplits)
	}

	splits := authed.Group("/splits")
	{
		splits.GET("/mine", h.GetMySplits)
		splits.PATCH("/:id/settle", h.SettleSplit)
		splits.PATCH("/:id/partial-payment", h.PaySplit)
	}

	settlements := authed.Group("/settlements")
	{
		settlements.POST("", h.CreateSettlement)
		settlements.GET("/:id", h.GetSettlement)
		settlements.PATCH("/:id", h.UpdateSettlement)
		settlements.DELETE("/:id", h.DeleteSettlement)
	}

	authed.GET("/notifications", h.ListNotifications)
	authed.PATCH("/notifications/:id/read", h.MarkNotificationRead)

	return r
}
