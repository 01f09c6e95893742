package services

import (
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

var (
	customer = domain.Identity{ID: 7, Role: domain.RoleCustomer, FirstName: "Cora", LastName: "Customer"}
	staff    = domain.Identity{ID: 3, Role: domain.RoleStaff, FirstName: "Ada", LastName: "Lovelace"}
	admin    = domain.Identity{ID: 1, Role: domain.RoleAdmin, FirstName: "Root", LastName: "Admin"}
	outsider = domain.Identity{ID: 99, Role: domain.RoleCustomer, FirstName: "X", LastName: "Outsider"}
)

func u(v uint) *uint { return &v }

func TestPolicy_CanAccessRoom(t *testing.T) {
	p := Policy{}
	room := &domain.Room{CustomerID: 7, StaffID: u(3)}

	for _, who := range []domain.Identity{customer, staff, admin} {
		if err := p.CanAccessRoom(who, room); err != nil {
			t.Fatalf("%d should access room: %v", who.ID, err)
		}
	}
	if err := p.CanAccessRoom(outsider, room); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("outsider: got %v; want ErrAccessDenied", err)
	}
	otherStaff := domain.Identity{ID: 4, Role: domain.RoleStaff}
	if err := p.CanAccessRoom(otherStaff, room); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unassigned staff: got %v; want ErrAccessDenied", err)
	}
}

func TestPolicy_CanEditMessage_Window(t *testing.T) {
	p := Policy{EditWindow: 600 * time.Second}
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &domain.Message{SenderID: u(7), CreatedAt: t0, MessageType: domain.MessageTypeText}

	if err := p.CanEditMessage(customer, m, t0.Add(599*time.Second)); err != nil {
		t.Fatalf("599s should be editable: %v", err)
	}
	if err := p.CanEditMessage(customer, m, t0.Add(600*time.Second)); err != nil {
		t.Fatalf("exactly 600s should be editable: %v", err)
	}
	err := p.CanEditMessage(customer, m, t0.Add(600*time.Second+time.Millisecond))
	if !errors.Is(err, ErrEditWindowExpired) {
		t.Fatalf("600s+ε: got %v; want ErrEditWindowExpired", err)
	}
	if msg := PublicMessage(err, ""); msg != "Cannot edit messages older than 10 minutes" {
		t.Fatalf("message = %q", msg)
	}

	if err := p.CanEditMessage(staff, m, t0); !errors.Is(err, ErrEditNotOwner) {
		t.Fatalf("non-owner: got %v", err)
	}
	if err := p.CanEditMessage(admin, m, t0); !errors.Is(err, ErrEditNotOwner) {
		t.Fatalf("admin may not edit others: got %v", err)
	}

	deleted := *m
	deleted.IsDeleted = true
	if err := p.CanEditMessage(customer, &deleted, t0); !errors.Is(err, ErrMessageDeleted) {
		t.Fatalf("deleted: got %v", err)
	}

	sys := &domain.Message{MessageType: domain.MessageTypeSystem, CreatedAt: t0}
	if err := p.CanEditMessage(admin, sys, t0); !errors.Is(err, ErrSystemMessage) {
		t.Fatalf("system: got %v", err)
	}
}

func TestPolicy_EditWindowMessageFollowsConfig(t *testing.T) {
	p := Policy{EditWindow: 5 * time.Minute}
	t0 := time.Now()
	m := &domain.Message{SenderID: u(7), CreatedAt: t0}
	err := p.CanEditMessage(customer, m, t0.Add(6*time.Minute))
	if PublicMessage(err, "") != "Cannot edit messages older than 5 minutes" {
		t.Fatalf("message = %q", PublicMessage(err, ""))
	}
}

func TestPolicy_CanDeleteMessage(t *testing.T) {
	p := Policy{}
	m := &domain.Message{SenderID: u(7), MessageType: domain.MessageTypeText}

	if err := p.CanDeleteMessage(customer, m); err != nil {
		t.Fatalf("sender: %v", err)
	}
	if err := p.CanDeleteMessage(admin, m); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if err := p.CanDeleteMessage(staff, m); !errors.Is(err, ErrDeleteNotOwner) {
		t.Fatalf("staff: got %v", err)
	}
	m.IsDeleted = true
	if err := p.CanDeleteMessage(admin, m); !errors.Is(err, ErrMessageDeleted) {
		t.Fatalf("already deleted: got %v", err)
	}
	if err := p.CanDeleteMessage(admin, &domain.Message{MessageType: domain.MessageTypeSystem}); !errors.Is(err, ErrSystemMessage) {
		t.Fatalf("system: got %v", err)
	}
}

func TestPolicy_Roles(t *testing.T) {
	p := Policy{}
	if err := p.CanCreateSupportRoom(customer); err != nil {
		t.Fatalf("customer: %v", err)
	}
	for _, who := range []domain.Identity{staff, admin} {
		if err := p.CanCreateSupportRoom(who); !errors.Is(err, ErrCustomersOnly) {
			t.Fatalf("%s: got %v", who.Role, err)
		}
	}
	if err := p.CanManageRooms(customer); !errors.Is(err, ErrStaffOnly) {
		t.Fatalf("customer manage: %v", err)
	}
	if err := p.CanAssign(staff, staff.ID); err != nil {
		t.Fatalf("self assign: %v", err)
	}
	if err := p.CanAssign(staff, 42); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("staff assigning others: %v", err)
	}
	if err := p.CanAssign(admin, 42); err != nil {
		t.Fatalf("admin assign: %v", err)
	}
	if err := p.RequireAdmin(staff); !errors.Is(err, ErrAdminOnly) {
		t.Fatalf("RequireAdmin(staff): %v", err)
	}
}
