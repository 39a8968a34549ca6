package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tasktrail.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore persists the trail in the audit_logs table.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: time.Now}
}

func (s *PGStore) Append(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_logs(id, actor_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.ID, nullable(rec.ActorID), string(rec.Action), rec.ResourceType,
		nullable(rec.ResourceID), rec.Details, nullable(rec.IPAddress), nullable(rec.UserAgent), rec.CreatedAt,
	)
	return err
}

func (s *PGStore) ListByActorOrgs(ctx context.Context, orgIDs []string, limit int) ([]*Record, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(orgIDs))
	args := make([]any, 0, len(orgIDs)+1)
	for i, id := range orgIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`select a.id, a.actor_id, a.action, a.resource_type, a.resource_id, a.details, a.ip_address, a.user_agent, a.created_at
		 from audit_logs a
		 join users u on u.id = a.actor_id
		 where u.organization_id in (%s)
		 order by a.created_at desc, a.id desc
		 limit $%d`,
		strings.Join(placeholders, ","), len(orgIDs)+1,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			rec        Record
			actor      sql.NullString
			resourceID sql.NullString
			ip         sql.NullString
			agent      sql.NullString
			action     string
		)
		if err := rows.Scan(&rec.ID, &actor, &action, &rec.ResourceType, &resourceID, &rec.Details, &ip, &agent, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Action = Action(action)
		rec.ActorID = actor.String
		rec.ResourceID = resourceID.String
		rec.IPAddress = ip.String
		rec.UserAgent = agent.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
