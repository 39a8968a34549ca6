package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL. "order" is a reserved word,
// hence the task_order column.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const taskColumns = `id, title, description, status, category, task_order, due_date, organization_id, created_by_id, assigned_to_id, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, t *Task) error {
	_, err := s.db.ExecContext(ctx,
		`insert into tasks(id, title, description, status, category, task_order, due_date, organization_id, created_by_id, assigned_to_id)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Category),
		t.Order, t.DueDate, t.OrganizationID, t.CreatedByID, t.AssignedToID,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `select `+taskColumns+` from tasks where id=$1`, id)
	t, err := scanTask(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *PGStore) ListByOrgs(ctx context.Context, orgIDs []string) ([]*Task, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(orgIDs))
	args := make([]any, len(orgIDs))
	for i, id := range orgIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(
		`select `+taskColumns+` from tasks
		 where organization_id in (%s)
		 order by task_order asc, created_at desc`,
		strings.Join(placeholders, ","),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, t *Task) error {
	res, err := s.db.ExecContext(ctx,
		`update tasks
		 set title=$2, description=$3, status=$4, category=$5, task_order=$6, due_date=$7, assigned_to_id=$8, updated_at=now()
		 where id=$1`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Category), t.Order, t.DueDate, t.AssignedToID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (*Task, error) {
	var (
		t          Task
		status     string
		category   string
		due        sql.NullTime
		assignedTo sql.NullString
	)
	err := scan(&t.ID, &t.Title, &t.Description, &status, &category, &t.Order, &due,
		&t.OrganizationID, &t.CreatedByID, &assignedTo, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Category = Category(category)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if assignedTo.Valid {
		a := assignedTo.String
		t.AssignedToID = &a
	}
	return &t, nil
}
