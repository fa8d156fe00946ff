package policy

import (
	"testing"

	"github.com/google/uuid"
)

func TestSuperuserBypassesPermissions(t *testing.T) {
	s := NewSubject(uuid.New(), true, true, "", nil)
	for _, perm := range KnownPermissions {
		if !s.Can(perm) {
			t.Fatalf("superuser should hold %s", perm)
		}
	}
	if !s.IsAdmin() {
		t.Fatal("superuser should count as admin")
	}
	if s.IsCSM() {
		t.Fatal("superuser is not implicitly a csm")
	}
}

func TestInactiveUserHoldsNothing(t *testing.T) {
	s := NewSubject(uuid.New(), false, true, RoleAdmin, KnownPermissions)
	if s.Can(PermChangeClient) || s.IsAdmin() || s.IsStaff() {
		t.Fatal("inactive user must not be authorized")
	}
	if len(s.Permissions()) != 0 {
		t.Fatalf("expected no permissions, got %v", s.Permissions())
	}
}

func TestRoleAndDirectPermissions(t *testing.T) {
	s := NewSubject(uuid.New(), true, false, "CSM", []string{PermChangeClientStage, PermAssignClient})

	if !s.IsCSM() {
		t.Fatal("role comparison should be case-insensitive")
	}
	if s.IsAdmin() {
		t.Fatal("csm is not admin")
	}
	if !s.Can(PermAssignClient) || !s.Can(PermChangeClientStage) {
		t.Fatal("expected granted permissions")
	}
	if s.Can(PermChangeClient) {
		t.Fatal("did not expect change_client")
	}
	got := s.Permissions()
	if len(got) != 2 || got[0] != PermAssignClient {
		t.Fatalf("unexpected sorted permissions %v", got)
	}
}

func TestAdminRole(t *testing.T) {
	s := NewSubject(uuid.New(), true, false, "Admin", nil)
	if !s.IsAdmin() || !s.IsStaff() {
		t.Fatal("admin role should be admin and staff")
	}
	if s.Can(PermViewAllClients) {
		t.Fatal("admin role grants no codenames by itself")
	}
}
