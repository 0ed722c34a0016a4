// Package service implements the core components of the expense ledger:
// the membership registry, the expense ledger, the settlement processor and
// the reporting views. Every operation takes the acting user explicitly;
// nothing is read from ambient request state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/notify"
	"github.com/splitledger/splitledger/internal/storage"
)

// GroupService is the group membership registry: it owns groups and their
// member rows, and provides the isMember/isAdmin predicates the other
// components gate on.
type GroupService struct {
	store    storage.Store
	notifier notify.Notifier
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, notifier notify.Notifier) *GroupService {
	return &GroupService{store: store, notifier: notifier}
}

// CreateGroupInput carries the fields for a new group.
type CreateGroupInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Type        models.GroupType `json:"type"`
	ImageURL    string           `json:"image_url"`
}

// CreateGroup creates a group with the acting user as its first admin member.
func (s *GroupService) CreateGroup(ctx context.Context, actorID string, in CreateGroupInput) (*models.Group, error) {
	if in.Name == "" {
		return nil, BadRequest("group name is required")
	}
	if in.Type == "" {
		in.Type = models.GroupTypeOther
	}
	if !in.Type.Valid() {
		return nil, BadRequest("unknown group type %q", in.Type)
	}

	group := &models.Group{
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		ImageURL:    in.ImageURL,
	}
	creator := &models.Member{
		UserID: actorID,
		Role:   models.RoleAdmin,
	}

	if err := s.store.CreateGroup(ctx, group, creator); err != nil {
		slog.Error("CreateGroup failed", "actor", actorID, "error", err)
		return nil, Internal(err)
	}

	slog.Info("Group created", "group_id", group.ID, "actor", actorID)
	return group, nil
}

// GetGroup retrieves a group; the actor must be an active member.
func (s *GroupService) GetGroup(ctx context.Context, actorID, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	return group, nil
}

// ListUserGroups retrieves the groups the actor belongs to.
func (s *GroupService) ListUserGroups(ctx context.Context, actorID string) ([]*models.Group, error) {
	groups, err := s.store.ListGroupsByUser(ctx, actorID)
	if err != nil {
		return nil, Internal(err)
	}
	return groups, nil
}

// UpdateGroupInput carries the mutable group fields; nil means unchanged.
type UpdateGroupInput struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Type        *models.GroupType `json:"type"`
	ImageURL    *string           `json:"image_url"`
	IsActive    *bool             `json:"is_active"`
}

// UpdateGroup updates group fields; admin-only. Setting IsActive false
// archives the group.
func (s *GroupService) UpdateGroup(ctx context.Context, actorID, groupID string, in UpdateGroupInput) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, BadRequest("group name cannot be empty")
		}
		group.Name = *in.Name
	}
	if in.Description != nil {
		group.Description = *in.Description
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, BadRequest("unknown group type %q", *in.Type)
		}
		group.Type = *in.Type
	}
	if in.ImageURL != nil {
		group.ImageURL = *in.ImageURL
	}
	if in.IsActive != nil {
		group.IsActive = *in.IsActive
	}

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, Internal(err)
	}
	slog.Info("Group updated", "group_id", groupID, "actor", actorID)
	return group, nil
}

// DeleteGroup hard-deletes a group; admin-only. Fails while the group still
// owns expenses or settlements, in which case callers archive it instead.
func (s *GroupService) DeleteGroup(ctx context.Context, actorID, groupID string) error {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return groupLookupErr(groupID, err)
	}
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return err
	}

	err := s.store.DeleteGroup(ctx, groupID)
	switch {
	case err == nil:
		slog.Info("Group deleted", "group_id", groupID, "actor", actorID)
		return nil
	case errors.Is(err, storage.ErrHasDependents):
		return BadRequest("group has expenses or settlements; archive it instead")
	case errors.Is(err, storage.ErrNotFound):
		return NotFound("group %s not found", groupID)
	default:
		return Internal(err)
	}
}

// AddMemberInput identifies the user to add by id or email.
type AddMemberInput struct {
	UserID string            `json:"user_id"`
	Email  string            `json:"email"`
	Role   models.MemberRole `json:"role"`
}

// AddMember adds a user to the group; admin-only. A previously deactivated
// membership is reactivated rather than duplicated.
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID string, in AddMemberInput) (*models.Member, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	var user *models.User
	var err error
	switch {
	case in.UserID != "":
		user, err = s.store.GetUserByID(ctx, in.UserID)
	case in.Email != "":
		user, err = s.store.GetUserByEmail(ctx, in.Email)
	default:
		return nil, BadRequest("user_id or email is required")
	}
	if err != nil {
		return nil, Internal(err)
	}
	if user == nil {
		return nil, NotFound("user not found; they may need to register first")
	}

	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, BadRequest("unknown role %q", role)
	}

	existing, err := s.store.GetMembership(ctx, groupID, user.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, Internal(err)
	}
	if existing != nil {
		if existing.IsActive {
			return nil, BadRequest("user is already a member of this group")
		}
		existing.IsActive = true
		existing.Role = role
		if err := s.store.UpdateMember(ctx, existing); err != nil {
			return nil, Internal(err)
		}
		slog.Info("Membership reactivated", "group_id", groupID, "user_id", user.ID)
		s.notifyAdded(ctx, groupID, user.ID)
		return existing, nil
	}

	member := &models.Member{
		GroupID:  groupID,
		UserID:   user.ID,
		Role:     role,
		IsActive: true,
	}
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, Internal(err)
	}

	slog.Info("Member added", "group_id", groupID, "user_id", user.ID, "role", role)
	s.notifyAdded(ctx, groupID, user.ID)
	return member, nil
}

func (s *GroupService) notifyAdded(ctx context.Context, groupID, userID string) {
	notify.Send(ctx, s.notifier, &models.Notification{
		UserID:    userID,
		Type:      models.NotifyMemberAdded,
		Title:     "Added to Group",
		Message:   "You have been added to a group",
		ActionURL: fmt.Sprintf("/groups/%s", groupID),
	})
}

// ListMembers retrieves the active members of a group; member-only.
func (s *GroupService) ListMembers(ctx context.Context, actorID, groupID string) ([]*models.Member, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, Internal(err)
	}
	return members, nil
}

// UpdateRole changes a member's role; admin-only. An admin cannot change
// their own role, which closes the silent privilege drop/escalation race.
func (s *GroupService) UpdateRole(ctx context.Context, actorID, groupID, memberID string, newRole models.MemberRole) (*models.Member, error) {
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	if !newRole.Valid() {
		return nil, BadRequest("unknown role %q", newRole)
	}

	member, err := s.store.GetMember(ctx, groupID, memberID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NotFound("member %s not found", memberID)
		}
		return nil, Internal(err)
	}
	if member.UserID == actorID {
		return nil, BadRequest("you cannot change your own role")
	}

	// Demoting an admin must not strip the group of its last one.
	if member.Role == models.RoleAdmin && newRole != models.RoleAdmin {
		admins, err := s.countActiveAdmins(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, BadRequest("cannot demote the last admin; assign another admin first")
		}
	}

	member.Role = newRole
	if err := s.store.UpdateMember(ctx, member); err != nil {
		return nil, Internal(err)
	}
	slog.Info("Member role updated", "group_id", groupID, "member_id", memberID, "role", newRole)
	return member, nil
}

// RemoveMember soft-deactivates a membership; admin-only. Removing the last
// active admin fails.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, memberID string) error {
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return err
	}

	err := s.store.DeactivateMember(ctx, groupID, memberID)
	switch {
	case err == nil:
		slog.Info("Member removed", "group_id", groupID, "member_id", memberID, "actor", actorID)
		return nil
	case errors.Is(err, storage.ErrLastAdmin):
		return BadRequest("cannot remove the last admin; assign another admin first")
	case errors.Is(err, storage.ErrNotFound):
		return NotFound("member %s not found", memberID)
	default:
		return Internal(err)
	}
}

// LeaveGroup removes the actor's own membership, with the same last-admin
// guard as RemoveMember.
func (s *GroupService) LeaveGroup(ctx context.Context, actorID, groupID string) error {
	member, err := s.store.GetMembership(ctx, groupID, actorID)
	if err != nil || !member.IsActive {
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return NotFound("you are not a member of this group")
		}
		return Internal(err)
	}

	err = s.store.DeactivateMember(ctx, groupID, member.ID)
	switch {
	case err == nil:
		slog.Info("Member left group", "group_id", groupID, "user_id", actorID)
		return nil
	case errors.Is(err, storage.ErrLastAdmin):
		return BadRequest("you are the last admin; assign another admin before leaving")
	default:
		return Internal(err)
	}
}

// IsMember reports whether the user is an active member of the group.
func (s *GroupService) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	member, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, Internal(err)
	}
	return member.IsActive, nil
}

// IsAdmin reports whether the user is an active admin of the group.
func (s *GroupService) IsAdmin(ctx context.Context, userID, groupID string) (bool, error) {
	member, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, Internal(err)
	}
	return member.IsActive && member.Role == models.RoleAdmin, nil
}

func (s *GroupService) requireMember(ctx context.Context, userID, groupID string) error {
	ok, err := s.IsMember(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("you are not a member of this group")
	}
	return nil
}

func (s *GroupService) requireAdmin(ctx context.Context, userID, groupID string) error {
	ok, err := s.IsAdmin(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("only group admins can perform this action")
	}
	return nil
}

func (s *GroupService) countActiveAdmins(ctx context.Context, groupID string) (int, error) {
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return 0, Internal(err)
	}
	admins := 0
	for _, m := range members {
		if m.Role == models.RoleAdmin {
			admins++
		}
	}
	return admins, nil
}

func groupLookupErr(groupID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NotFound("group %s not found", groupID)
	}
	return Internal(err)
}
