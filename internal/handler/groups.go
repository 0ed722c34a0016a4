package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/service"
)

// CreateGroup handles POST /api/groups.
func (h *Handler) CreateGroup(c *gin.Context) {
	var req service.CreateGroupInput
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.Groups.CreateGroup(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// ListGroups handles GET /api/groups.
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.Groups.ListUserGroups(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// GetGroup handles GET /api/groups/:groupId.
func (h *Handler) GetGroup(c *gin.Context) {
	group, err := h.Groups.GetGroup(c.Request.Context(), middleware.UserID(c), c.Param("groupId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup handles PATCH /api/groups/:groupId.
func (h *Handler) UpdateGroup(c *gin.Context) {
	var req service.UpdateGroupInput
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.Groups.UpdateGroup(c.Request.Context(), middleware.UserID(c), c.Param("groupId"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// DeleteGroup handles DELETE /api/groups/:groupId.
func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.Groups.DeleteGroup(c.Request.Context(), middleware.UserID(c), c.Param("groupId")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// AddMember handles POST /api/groups/:groupId/members.
func (h *Handler) AddMember(c *gin.Context) {
	var req service.AddMemberInput
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.Groups.AddMember(c.Request.Context(), middleware.UserID(c), c.Param("groupId"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// ListMembers handles GET /api/groups/:groupId/members.
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.Groups.ListMembers(c.Request.Context(), middleware.UserID(c), c.Param("groupId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

type updateRoleRequest struct {
	Role models.MemberRole `json:"role" binding:"required"`
}

// UpdateMemberRole handles PATCH /api/groups/:groupId/members/:memberId/role.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	var req updateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.Groups.UpdateRole(c.Request.Context(), middleware.UserID(c),
		c.Param("groupId"), c.Param("memberId"), req.Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// RemoveMember handles DELETE /api/groups/:groupId/members/:memberId.
func (h *Handler) RemoveMember(c *gin.Context) {
	err := h.Groups.RemoveMember(c.Request.Context(), middleware.UserID(c),
		c.Param("groupId"), c.Param("memberId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// LeaveGroup handles POST /api/groups/:groupId/leave.
func (h *Handler) LeaveGroup(c *gin.Context) {
	if err := h.Groups.LeaveGroup(c.Request.Context(), middleware.UserID(c), c.Param("groupId")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}
