package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"alignd.io/internal/policy"
)

const pgUniqueViolation = "23505"

// mapErr converts driver-level failures to the policy sentinel errors the
// callers switch on.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return policy.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return policy.ErrConflict
	}
	return err
}

// --- role assignments ---

func (s *Store) Grant(ctx context.Context, a policy.RoleAssignment) error {
	granted := a.GrantedAt
	if granted.IsZero() {
		granted = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments(user_id, role, scope_type, scope_id, granted_at)
		values ($1,$2,$3,$4,$5)
	`, a.UserID, string(a.Role), string(a.ScopeType), a.ScopeID, granted)
	return mapErr(err)
}

func (s *Store) Revoke(ctx context.Context, userID string, role policy.Role, scopeType policy.ScopeType, scopeID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where user_id=$1 and role=$2 and scope_type=$3 and scope_id=$4
	`, userID, string(role), string(scopeType), scopeID)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return policy.ErrNotFound
	}
	return nil
}

func (s *Store) AssignmentsForUser(ctx context.Context, userID string) ([]policy.RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role, scope_type, scope_id, granted_at
		from role_assignments where user_id=$1
		order by granted_at asc
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []policy.RoleAssignment
	for rows.Next() {
		var a policy.RoleAssignment
		var role, scopeType string
		if err := rows.Scan(&a.UserID, &role, &scopeType, &a.ScopeID, &a.GrantedAt); err != nil {
			return nil, err
		}
		a.Role = policy.Role(role)
		a.ScopeType = policy.ScopeType(scopeType)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- directory ---

func (s *Store) User(ctx context.Context, id string) (*policy.User, error) {
	var u policy.User
	var org sql.NullString
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, email, is_superuser, created_at, updated_at
		from users where id=$1
	`, id).Scan(&u.ID, &org, &u.Email, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if org.Valid {
		u.OrganizationID = org.String
	}
	return &u, nil
}

func (s *Store) Organization(ctx context.Context, id string) (*policy.Organization, error) {
	var o policy.Organization
	var private, exec, metadata []byte
	err := s.db.QueryRowContext(ctx, `
		select id, name, private_whitelist, exec_only_whitelist, metadata, created_at, updated_at
		from organizations where id=$1
	`, id).Scan(&o.ID, &o.Name, &private, &exec, &metadata, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := decodeOrgColumns(&o, private, exec, metadata); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, id string, upd policy.OrganizationUpdate) (*policy.Organization, error) {
	current, err := s.Organization(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		current.Name = *upd.Name
	}
	if upd.Metadata != nil {
		current.Metadata = upd.Metadata
	}
	if upd.PrivateWhitelist != nil {
		current.PrivateWhitelist = append([]string(nil), (*upd.PrivateWhitelist)...)
	}
	if upd.ExecOnlyWhitelist != nil {
		current.ExecOnlyWhitelist = append([]string(nil), (*upd.ExecOnlyWhitelist)...)
	}

	private, exec, metadata, err := encodeOrgColumns(current)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `
		update organizations
		set name=$2, private_whitelist=$3, exec_only_whitelist=$4, metadata=$5, updated_at=now()
		where id=$1
		returning updated_at
	`, id, current.Name, private, exec, metadata).Scan(&current.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return current, nil
}

func (s *Store) Workspace(ctx context.Context, id string) (*policy.Workspace, error) {
	var w policy.Workspace
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, parent_id, name, created_at, updated_at
		from workspaces where id=$1
	`, id).Scan(&w.ID, &w.OrganizationID, &parent, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if parent.Valid {
		w.ParentID = parent.String
	}
	return &w, nil
}

func (s *Store) SetWorkspaceParent(ctx context.Context, id, parentID string) error {
	res, err := s.db.ExecContext(ctx, `
		update workspaces set parent_id=nullif($2,''), updated_at=now() where id=$1
	`, id, parentID)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return policy.ErrNotFound
	}
	return nil
}

func (s *Store) Team(ctx context.Context, id string) (*policy.Team, error) {
	var t policy.Team
	err := s.db.QueryRowContext(ctx, `
		select id, workspace_id, name, created_at, updated_at
		from teams where id=$1
	`, id).Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

// --- OKRs ---

func (s *Store) Objective(ctx context.Context, id string) (*policy.Objective, error) {
	row := s.db.QueryRowContext(ctx, objectiveSelect+` where id=$1`, id)
	return scanObjective(row)
}

func (s *Store) UpdateObjective(ctx context.Context, id string, upd policy.ObjectiveUpdate) (*policy.Objective, error) {
	current, err := s.Objective(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		current.Title = *upd.Title
	}
	if upd.Visibility != nil {
		current.Visibility = *upd.Visibility
	}
	if upd.IsPublished != nil {
		current.IsPublished = *upd.IsPublished
	}
	if upd.CycleID != nil {
		current.CycleID = *upd.CycleID
	}
	err = s.db.QueryRowContext(ctx, `
		update objectives
		set title=$2, visibility=$3, is_published=$4, cycle_id=nullif($5,''), updated_at=now()
		where id=$1
		returning updated_at
	`, id, current.Title, string(current.Visibility), current.IsPublished, current.CycleID).Scan(&current.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return current, nil
}

func (s *Store) ListObjectives(ctx context.Context, filter policy.ObjectiveFilter) ([]*policy.Objective, error) {
	query := objectiveSelect + ` order by created_at asc`
	var args []any
	if !filter.Unfiltered {
		query = objectiveSelect + ` where organization_id=$1 order by created_at asc`
		args = append(args, filter.TenantID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*policy.Objective
	for rows.Next() {
		obj, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

func (s *Store) KeyResult(ctx context.Context, id string) (*policy.KeyResult, error) {
	var k policy.KeyResult
	err := s.db.QueryRowContext(ctx, `
		select id, objective_id, owner_id, title, created_at, updated_at
		from key_results where id=$1
	`, id).Scan(&k.ID, &k.ObjectiveID, &k.OwnerID, &k.Title, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &k, nil
}

func (s *Store) Cycle(ctx context.Context, id string) (*policy.Cycle, error) {
	var c policy.Cycle
	var status string
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, status, created_at, updated_at
		from cycles where id=$1
	`, id).Scan(&c.ID, &c.OrganizationID, &c.Name, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	c.Status = policy.CycleStatus(status)
	return &c, nil
}

// --- scan helpers ---

const objectiveSelect = `
	select id, organization_id, workspace_id, team_id, owner_id, title,
	       visibility, is_published, cycle_id, created_at, updated_at
	from objectives`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObjective(row rowScanner) (*policy.Objective, error) {
	var o policy.Objective
	var workspace, team, cycle sql.NullString
	var visibility string
	err := row.Scan(&o.ID, &o.OrganizationID, &workspace, &team, &o.OwnerID, &o.Title,
		&visibility, &o.IsPublished, &cycle, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	o.Visibility = policy.Visibility(visibility)
	if workspace.Valid {
		o.WorkspaceID = workspace.String
	}
	if team.Valid {
		o.TeamID = team.String
	}
	if cycle.Valid {
		o.CycleID = cycle.String
	}
	return &o, nil
}

// decodeOrgColumns unpacks the jsonb whitelist and metadata columns. Null
// columns stay nil.
func decodeOrgColumns(o *policy.Organization, private, exec, metadata []byte) error {
	if len(private) > 0 {
		if err := json.Unmarshal(private, &o.PrivateWhitelist); err != nil {
			return fmt.Errorf("decode private_whitelist: %w", err)
		}
	}
	if len(exec) > 0 {
		if err := json.Unmarshal(exec, &o.ExecOnlyWhitelist); err != nil {
			return fmt.Errorf("decode exec_only_whitelist: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
	}
	return nil
}

func encodeOrgColumns(o *policy.Organization) (private, exec, metadata []byte, err error) {
	if private, err = json.Marshal(orEmpty(o.PrivateWhitelist)); err != nil {
		return nil, nil, nil, err
	}
	if exec, err = json.Marshal(orEmpty(o.ExecOnlyWhitelist)); err != nil {
		return nil, nil, nil, err
	}
	meta := o.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if metadata, err = json.Marshal(meta); err != nil {
		return nil, nil, nil, err
	}
	return private, exec, metadata, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
