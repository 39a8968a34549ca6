package auth

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Identities() IdentityStore { return &identityStore{db: s.db} }

func (s *PGStore) Organizations() OrganizationStore { return &orgStore{db: s.db} }

// Identity store ------------------------------------------------------------

type identityStore struct{ db *sql.DB }

const identityColumns = `id, username, password_hash, role, organization_id, created_at, updated_at`

func (s *identityStore) Create(ctx context.Context, id *Identity) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where username=$1)`, id.Username,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateUsername
	}
	_, err = s.db.ExecContext(ctx,
		`insert into users(id, username, password_hash, role, organization_id) values($1,$2,$3,$4,$5)`,
		id.ID, id.Username, id.PasswordHash, string(id.Role), id.OrganizationID,
	)
	return err
}

func (s *identityStore) Find(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where id=$1`, id)
	return scanIdentity(row)
}

func (s *identityStore) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where username=$1`, username)
	return scanIdentity(row)
}

func scanIdentity(row *sql.Row) (*Identity, error) {
	var (
		id   Identity
		role string
	)
	err := row.Scan(&id.ID, &id.Username, &id.PasswordHash, &role, &id.OrganizationID, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	id.Role = Role(role)
	return &id, nil
}

// Organization store --------------------------------------------------------

type orgStore struct{ db *sql.DB }

const orgColumns = `id, name, parent_id, created_at, updated_at`

func (s *orgStore) Create(ctx context.Context, org *Organization) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from organizations where name=$1)`, org.Name,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateOrganization
	}
	_, err = s.db.ExecContext(ctx,
		`insert into organizations(id, name, parent_id) values($1,$2,$3)`,
		org.ID, org.Name, org.ParentID,
	)
	return err
}

func (s *orgStore) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where id=$1`, id)
	return scanOrganization(row)
}

func (s *orgStore) FindByName(ctx context.Context, name string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where name=$1`, name)
	return scanOrganization(row)
}

func (s *orgStore) Children(ctx context.Context, parentID string) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orgColumns+` from organizations where parent_id=$1`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrganizations(rows)
}

func (s *orgStore) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orgColumns+` from organizations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrganizations(rows)
}

func scanOrganization(row *sql.Row) (*Organization, error) {
	var (
		org    Organization
		parent sql.NullString
	)
	err := row.Scan(&org.ID, &org.Name, &parent, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	if parent.Valid {
		org.ParentID = &parent.String
	}
	return &org, nil
}

func collectOrganizations(rows *sql.Rows) ([]*Organization, error) {
	var out []*Organization
	for rows.Next() {
		var (
			org    Organization
			parent sql.NullString
		)
		if err := rows.Scan(&org.ID, &org.Name, &parent, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			org.ParentID = &parent.String
		}
		out = append(out, &org)
	}
	return out, rows.Err()
}
