package service

import (
	"context"
	"testing"

	"github.com/splitledger/splitledger/internal/models"
)

func TestCreateGroupMakesCreatorAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")

	group, err := env.groups.CreateGroup(ctx, alice.ID, CreateGroupInput{Name: "Flat 4B"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if group.ID == "" {
		t.Error("expected non-empty group ID")
	}

	admin, err := env.groups.IsAdmin(ctx, alice.ID, group.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !admin {
		t.Error("creator should be an admin member")
	}
}

func TestCreateGroupValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")

	_, err := env.groups.CreateGroup(context.Background(), alice.ID, CreateGroupInput{})
	wantKind(t, err, KindBadRequest)

	_, err = env.groups.CreateGroup(context.Background(), alice.ID, CreateGroupInput{
		Name: "X", Type: models.GroupType("club"),
	})
	wantKind(t, err, KindBadRequest)
}

func TestAddMemberByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice)

	member, err := env.groups.AddMember(ctx, alice.ID, group.ID, AddMemberInput{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if member.UserID != bob.ID {
		t.Errorf("member user = %s, want %s", member.UserID, bob.ID)
	}
	if member.Role != models.RoleMember {
		t.Errorf("role = %s, want member", member.Role)
	}
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")
	group := env.createGroup(t, alice, bob)

	_, err := env.groups.AddMember(ctx, bob.ID, group.ID, AddMemberInput{UserID: carol.ID})
	wantKind(t, err, KindForbidden)
}

func TestAddMemberUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	group := env.createGroup(t, alice)

	_, err := env.groups.AddMember(context.Background(), alice.ID, group.ID, AddMemberInput{Email: "nobody@example.com"})
	wantKind(t, err, KindNotFound)
}

func TestAddMemberAlreadyActive(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	_, err := env.groups.AddMember(context.Background(), alice.ID, group.ID, AddMemberInput{UserID: bob.ID})
	wantKind(t, err, KindBadRequest)
}

func TestAddMemberReactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	membership, err := env.store.GetMembership(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if err := env.groups.RemoveMember(ctx, alice.ID, group.ID, membership.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	readded, err := env.groups.AddMember(ctx, alice.ID, group.ID, AddMemberInput{UserID: bob.ID})
	if err != nil {
		t.Fatalf("AddMember after removal failed: %v", err)
	}
	if readded.ID != membership.ID {
		t.Errorf("expected reactivated membership %s, got new row %s", membership.ID, readded.ID)
	}
	if !readded.IsActive {
		t.Error("reactivated membership should be active")
	}

	members, err := env.groups.ListMembers(ctx, alice.ID, group.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("got %d members, want 2", len(members))
	}
}

func TestRemoveLastAdminFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	membership, err := env.store.GetMembership(ctx, group.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}

	err = env.groups.RemoveMember(ctx, alice.ID, group.ID, membership.ID)
	wantKind(t, err, KindBadRequest)

	err = env.groups.LeaveGroup(ctx, alice.ID, group.ID)
	wantKind(t, err, KindBadRequest)
}

func TestLeaveGroupAfterPromotingReplacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	bobMembership, err := env.store.GetMembership(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if _, err := env.groups.UpdateRole(ctx, alice.ID, group.ID, bobMembership.ID, models.RoleAdmin); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	if err := env.groups.LeaveGroup(ctx, alice.ID, group.ID); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}

	ok, err := env.groups.IsMember(ctx, alice.ID, group.ID)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if ok {
		t.Error("alice should no longer be a member")
	}
}

func TestUpdateOwnRoleFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	group := env.createGroup(t, alice)

	membership, err := env.store.GetMembership(ctx, group.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}

	_, err = env.groups.UpdateRole(ctx, alice.ID, group.ID, membership.ID, models.RoleMember)
	wantKind(t, err, KindBadRequest)
}

func TestDemoteLastAdminFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")
	group := env.createGroup(t, alice, bob, carol)

	bobMembership, err := env.store.GetMembership(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if _, err := env.groups.UpdateRole(ctx, alice.ID, group.ID, bobMembership.ID, models.RoleAdmin); err != nil {
		t.Fatalf("promote failed: %v", err)
	}

	// Two admins now; bob can demote alice.
	aliceMembership, err := env.store.GetMembership(ctx, group.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if _, err := env.groups.UpdateRole(ctx, bob.ID, group.ID, aliceMembership.ID, models.RoleMember); err != nil {
		t.Fatalf("demote failed: %v", err)
	}

	// Bob is the only admin left; alice can no longer act, bob cannot demote himself.
	_, err = env.groups.UpdateRole(ctx, alice.ID, group.ID, bobMembership.ID, models.RoleMember)
	wantKind(t, err, KindForbidden)
}

func TestDeleteGroupBlockedByExpenses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	err := env.groups.DeleteGroup(ctx, alice.ID, group.ID)
	wantKind(t, err, KindBadRequest)

	// Archiving via update remains possible.
	inactive := false
	if _, err := env.groups.UpdateGroup(ctx, alice.ID, group.ID, UpdateGroupInput{IsActive: &inactive}); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
}

func TestDeleteEmptyGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	group := env.createGroup(t, alice)

	if err := env.groups.DeleteGroup(ctx, alice.ID, group.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	_, err := env.groups.GetGroup(ctx, alice.ID, group.ID)
	wantKind(t, err, KindNotFound)
}

func TestGetGroupRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	mallory := env.createUser(t, "mallory@example.com")
	group := env.createGroup(t, alice)

	_, err := env.groups.GetGroup(context.Background(), mallory.ID, group.ID)
	wantKind(t, err, KindForbidden)
}

func TestListUserGroups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	env.createGroup(t, alice, bob)
	env.createGroup(t, alice)

	got, err := env.groups.ListUserGroups(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListUserGroups failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("bob sees %d groups, want 1", len(got))
	}
}
