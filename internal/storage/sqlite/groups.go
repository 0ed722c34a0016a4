package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// CreateGroup persists a new group together with its first (admin) membership
// in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group, creator *models.Member) error {
	now := time.Now().UTC()
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	group.IsActive = true
	group.CreatedAt = now
	group.UpdatedAt = now

	if creator.ID == "" {
		creator.ID = uuid.New().String()
	}
	creator.GroupID = group.ID
	creator.JoinedAt = now
	creator.IsActive = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, description, group_type, image_url, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		group.ID, group.Name, nullStr(group.Description), string(group.Type),
		nullStr(group.ImageURL), toUnix(now), toUnix(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (id, group_id, user_id, role, joined_at, is_active)
		 VALUES (?, ?, ?, ?, ?, 1)`,
		creator.ID, group.ID, creator.UserID, string(creator.Role), toUnix(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var description, imageURL sql.NullString
	var groupType string
	var isActive int
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, group_type, image_url, is_active, created_at, updated_at
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&group.ID, &group.Name, &description, &groupType, &imageURL, &isActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	group.Description = fromNullStr(description)
	group.Type = models.GroupType(groupType)
	group.ImageURL = fromNullStr(imageURL)
	group.IsActive = isActive != 0
	group.CreatedAt = fromUnix(createdAt)
	group.UpdatedAt = fromUnix(updatedAt)
	return group, nil
}

// UpdateGroup updates the mutable fields of a group.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, group_type = ?, image_url = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		group.Name, nullStr(group.Description), string(group.Type), nullStr(group.ImageURL),
		boolToInt(group.IsActive), toUnix(group.UpdatedAt), group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteGroup removes a group and its memberships. It fails with
// ErrHasDependents while the group still owns expenses or settlements.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to check group existence: %w", err)
	}

	var dependents int
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM group_expenses WHERE group_id = ?) +
		        (SELECT COUNT(*) FROM settlements WHERE group_id = ?)`,
		groupID, groupID,
	).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("failed to count dependents: %w", err)
	}
	if dependents > 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrHasDependents)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListGroupsByUser retrieves the active groups the user is an active member of.
func (s *SQLiteStore) ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.description, g.group_type, g.image_url, g.is_active, g.created_at, g.updated_at
		 FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? AND m.is_active = 1 AND g.is_active = 1
		 ORDER BY g.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		var description, imageURL sql.NullString
		var groupType string
		var isActive int
		var createdAt, updatedAt int64
		if err := rows.Scan(&group.ID, &group.Name, &description, &groupType, &imageURL, &isActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		group.Description = fromNullStr(description)
		group.Type = models.GroupType(groupType)
		group.ImageURL = fromNullStr(imageURL)
		group.IsActive = isActive != 0
		group.CreatedAt = fromUnix(createdAt)
		group.UpdatedAt = fromUnix(updatedAt)
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// CreateMember inserts a new membership row.
func (s *SQLiteStore) CreateMember(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (id, group_id, user_id, role, joined_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		member.ID, member.GroupID, member.UserID, string(member.Role),
		toUnix(member.JoinedAt), boolToInt(member.IsActive),
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// GetMember retrieves a membership by its ID within a group.
func (s *SQLiteStore) GetMember(ctx context.Context, groupID, memberID string) (*models.Member, error) {
	return s.getMemberWhere(ctx, "id = ? AND group_id = ?", memberID, groupID)
}

// GetMembership retrieves the membership of a user in a group, active or not.
func (s *SQLiteStore) GetMembership(ctx context.Context, groupID, userID string) (*models.Member, error) {
	return s.getMemberWhere(ctx, "group_id = ? AND user_id = ?", groupID, userID)
}

func (s *SQLiteStore) getMemberWhere(ctx context.Context, where string, args ...interface{}) (*models.Member, error) {
	member := &models.Member{}
	var role string
	var joinedAt int64
	var isActive int

	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, user_id, role, joined_at, is_active FROM group_members WHERE "+where,
		args...,
	).Scan(&member.ID, &member.GroupID, &member.UserID, &role, &joinedAt, &isActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	member.Role = models.MemberRole(role)
	member.JoinedAt = fromUnix(joinedAt)
	member.IsActive = isActive != 0
	return member, nil
}

// ListMembers retrieves the active members of a group in join order.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) ([]*models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, user_id, role, joined_at, is_active
		 FROM group_members
		 WHERE group_id = ? AND is_active = 1
		 ORDER BY joined_at, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member := &models.Member{}
		var role string
		var joinedAt int64
		var isActive int
		if err := rows.Scan(&member.ID, &member.GroupID, &member.UserID, &role, &joinedAt, &isActive); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		member.Role = models.MemberRole(role)
		member.JoinedAt = fromUnix(joinedAt)
		member.IsActive = isActive != 0
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// UpdateMember updates a membership's role and active flag.
func (s *SQLiteStore) UpdateMember(ctx context.Context, member *models.Member) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE group_members SET role = ?, is_active = ? WHERE id = ?",
		string(member.Role), boolToInt(member.IsActive), member.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s: %w", member.ID, storage.ErrNotFound)
	}
	return nil
}

// DeactivateMember soft-deletes a membership. The last-admin check runs in
// the same transaction as the update so concurrent removals cannot strip the
// group of its final admin.
func (s *SQLiteStore) DeactivateMember(ctx context.Context, groupID, memberID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role string
	var isActive int
	err = tx.QueryRowContext(ctx,
		"SELECT role, is_active FROM group_members WHERE id = ? AND group_id = ?",
		memberID, groupID,
	).Scan(&role, &isActive)
	if err == sql.ErrNoRows {
		return fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}

	if models.MemberRole(role) == models.RoleAdmin && isActive != 0 {
		var admins int
		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM group_members WHERE group_id = ? AND role = ? AND is_active = 1",
			groupID, string(models.RoleAdmin),
		).Scan(&admins)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return storage.ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE group_members SET is_active = 0 WHERE id = ?", memberID,
	); err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
