package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestIdentityStoreFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`select id, username, password_hash, role, organization_id, created_at, updated_at from users where username=\$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "organization_id", "created_at", "updated_at"}).
			AddRow("u-1", "alice", "hash", "admin", "org-1", now, now))

	store := NewPGStore(db)
	id, err := store.Identities().FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if id.ID != "u-1" || id.Role != RoleAdmin || id.OrganizationID != "org-1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityStoreFindMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select .* from users where id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "organization_id", "created_at", "updated_at"}))

	store := NewPGStore(db)
	if _, err := store.Identities().Find(context.Background(), "missing"); err != ErrIdentityNotFound {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestIdentityStoreCreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select exists\(select 1 from users where username=\$1\)`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewPGStore(db)
	err = store.Identities().Create(context.Background(), &Identity{ID: "u-2", Username: "alice"})
	if err != ErrDuplicateUsername {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestOrgStoreChildren(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`select id, name, parent_id, created_at, updated_at from organizations where parent_id=\$1`).
		WithArgs("org-root").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id", "created_at", "updated_at"}).
			AddRow("org-a", "Branch A", "org-root", now, now).
			AddRow("org-b", "Branch B", "org-root", now, now))

	store := NewPGStore(db)
	children, err := store.Organizations().Children(context.Background(), "org-root")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0].ParentID == nil || *children[0].ParentID != "org-root" {
		t.Fatalf("parent id not scanned: %+v", children[0])
	}
}

func TestOrgStoreFindScansNullParent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`select id, name, parent_id, created_at, updated_at from organizations where id=\$1`).
		WithArgs("org-root").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id", "created_at", "updated_at"}).
			AddRow("org-root", "Root", nil, now, now))

	store := NewPGStore(db)
	org, err := store.Organizations().Find(context.Background(), "org-root")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if org.ParentID != nil {
		t.Fatalf("expected nil parent for root, got %v", *org.ParentID)
	}
}
