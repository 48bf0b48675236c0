package services

import (
	"context"
	"errors"
	"testing"

	"github.com/campushub/portal-support/internal/domain"
)

func TestCanManage_Ruleset(t *testing.T) {
	cases := []struct {
		caller, target string
		want           bool
	}{
		{domain.RoleAdmin, domain.RoleConsultant, true},
		{domain.RoleAdmin, domain.RoleSubAdmin, true},
		{domain.RoleAdmin, domain.RoleAdmin, false},
		{domain.RoleSubAdmin, domain.RoleConsultant, true},
		{domain.RoleSubAdmin, domain.RoleStudent, true},
		{domain.RoleSubAdmin, domain.RoleSubAdmin, false},
		{domain.RoleSubAdmin, domain.RoleAdmin, false},
		{domain.RoleStudentOrganizer, domain.RoleStudent, true},
		{domain.RoleStudentOrganizer, domain.RoleConsultant, false},
		{domain.RoleStudent, domain.RoleStudent, false},
		{domain.RoleConsultant, domain.RoleStudent, false},
	}
	for _, tc := range cases {
		if got := CanManage(tc.caller, tc.target); got != tc.want {
			t.Fatalf("CanManage(%s, %s) = %v, want %v", tc.caller, tc.target, got, tc.want)
		}
	}
}

func TestAdminCreateUser_ConsultantUsableImmediately(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthSvc(db)
	ctx := context.Background()
	admin := seedUser(t, db, "Admin", "admin@example.edu", domain.RoleAdmin)

	consultant, err := svc.AdminCreateUser(ctx, admin, RegisterInput{
		FullName: "Counsellor", Email: "Counsellor@Example.EDU", Password: "hunter22",
		Role: domain.RoleConsultant,
	})
	if err != nil {
		t.Fatalf("AdminCreateUser: %v", err)
	}
	if !consultant.IsApproved || consultant.Email != "counsellor@example.edu" {
		t.Fatalf("staff-created account must be approved and lowercased: %+v", consultant)
	}

	// The consultant can log in and anchor a student thread right away.
	if _, _, err := svc.Login(ctx, "counsellor@example.edu", "hunter22"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	student := seedUser(t, db, "Ayesha", "ayesha@example.edu", domain.RoleStudent)
	thread, err := NewSupportService(db).EnsureThread(ctx, student.ID)
	if err != nil {
		t.Fatalf("EnsureThread: %v", err)
	}
	if thread.ConsultantID != consultant.ID {
		t.Fatalf("thread anchored to %s, want %s", thread.ConsultantID, consultant.ID)
	}
}

func TestAdminCreateUser_Guards(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthSvc(db)
	ctx := context.Background()
	admin := seedUser(t, db, "Admin", "admin@example.edu", domain.RoleAdmin)
	organizer := seedUser(t, db, "Org", "org@example.edu", domain.RoleStudentOrganizer)

	base := RegisterInput{FullName: "N", Email: "n@example.edu", Password: "hunter22", Role: domain.RoleConsultant}

	if _, err := svc.AdminCreateUser(ctx, organizer, base); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("organizer creating a consultant: %v", err)
	}
	if _, err := svc.AdminCreateUser(ctx, admin, RegisterInput{
		FullName: "N", Email: "n@example.edu", Password: "hunter22", Role: "WIZARD",
	}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("unknown role: %v", err)
	}
	if _, err := svc.AdminCreateUser(ctx, admin, RegisterInput{
		FullName: "N", Email: "n@example.edu", Password: "short", Role: domain.RoleStudent,
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("weak password: %v", err)
	}
	if _, err := svc.AdminCreateUser(ctx, admin, RegisterInput{
		FullName: "N", Email: "admin@example.edu", Password: "hunter22", Role: domain.RoleStudent,
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestApproveUser_UnblocksPendingConsultant(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthSvc(db)
	ctx := context.Background()
	admin := seedUser(t, db, "Admin", "admin@example.edu", domain.RoleAdmin)
	student := seedUser(t, db, "Ayesha", "ayesha@example.edu", domain.RoleStudent)

	pending, err := svc.Register(ctx, RegisterInput{
		FullName: "Counsellor", Email: "c@example.edu", Password: "hunter22",
		Role: domain.RoleConsultant,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if pending.IsApproved {
		t.Fatalf("self-registered staff must start pending")
	}
	support := NewSupportService(db)
	if _, err := support.EnsureThread(ctx, student.ID); !errors.Is(err, ErrNoConsultant) {
		t.Fatalf("pending consultant must not anchor threads: %v", err)
	}

	approved, err := svc.ApproveUser(ctx, admin, pending.ID)
	if err != nil {
		t.Fatalf("ApproveUser: %v", err)
	}
	if !approved.IsApproved {
		t.Fatalf("approval did not stick: %+v", approved)
	}
	if _, _, err := svc.Login(ctx, "c@example.edu", "hunter22"); err != nil {
		t.Fatalf("Login after approval: %v", err)
	}
	if _, err := support.EnsureThread(ctx, student.ID); err != nil {
		t.Fatalf("EnsureThread after approval: %v", err)
	}

	// Re-approving is a no-op success.
	if _, err := svc.ApproveUser(ctx, admin, pending.ID); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
}

func TestApproveUser_Guards(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthSvc(db)
	ctx := context.Background()
	admin := seedUser(t, db, "Admin", "admin@example.edu", domain.RoleAdmin)
	organizer := seedUser(t, db, "Org", "org@example.edu", domain.RoleStudentOrganizer)

	pending, err := svc.Register(ctx, RegisterInput{
		FullName: "Counsellor", Email: "c@example.edu", Password: "hunter22",
		Role: domain.RoleConsultant,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.ApproveUser(ctx, admin, "no-such-id"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
	if _, err := svc.ApproveUser(ctx, organizer, pending.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("organizer approving a consultant: %v", err)
	}
	if _, err := svc.ApproveUser(ctx, organizer, admin.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("nobody manages an admin: %v", err)
	}
}
