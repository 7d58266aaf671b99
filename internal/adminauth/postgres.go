package adminauth

import (
	"context"
	"database/sql"
	"time"

	"kassabook.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL. It is constructed over a DBTX so a
// *sql.Tx can be passed when the caller needs the writes inside its own
// transaction.
type PGStore struct {
	db DBTX
}

func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Operators(context.Context) OperatorStore   { return &operatorStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore           { return &roleStore{db: s.db} }
func (s *PGStore) Permissions(context.Context) PermissionStore {
	return &permissionStore{db: s.db}
}

// Operator store ------------------------------------------------------------

type operatorStore struct{ db DBTX }

const operatorColumns = `id, username, email, password_hash, display_name, phone, role_id,
	is_active, is_superadmin, mfa_enabled, mfa_secret,
	last_login_at, last_login_ip, login_count, failed_login_count, locked_until,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperator(row rowScanner) (*Operator, error) {
	var (
		op          Operator
		lastLoginAt sql.NullTime
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&op.ID, &op.Username, &op.Email, &op.PasswordHash, &op.DisplayName, &op.Phone, &op.RoleID,
		&op.IsActive, &op.IsSuperadmin, &op.MFAEnabled, &op.MFASecret,
		&lastLoginAt, &op.LastLoginIP, &op.LoginCount, &op.FailedLoginCount, &lockedUntil,
		&op.CreatedBy, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		op.LastLoginAt = &t
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		op.LockedUntil = &t
	}
	return &op, nil
}

func (s *operatorStore) Create(ctx context.Context, op *Operator) error {
	if op.ID == "" {
		op.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into admin_operators(id, username, email, password_hash, display_name, phone, role_id,
			is_active, is_superadmin, mfa_enabled, mfa_secret, last_login_ip, created_by)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'',$12)`,
		op.ID, op.Username, op.Email, op.PasswordHash, op.DisplayName, op.Phone, op.RoleID,
		op.IsActive, op.IsSuperadmin, op.MFAEnabled, op.MFASecret, op.CreatedBy,
	)
	return err
}

func (s *operatorStore) Find(ctx context.Context, id string) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+operatorColumns+` from admin_operators where id=$1`, id)
	return scanOperator(row)
}

func (s *operatorStore) FindByUsername(ctx context.Context, username string) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+operatorColumns+` from admin_operators where username=$1`, username)
	return scanOperator(row)
}

func (s *operatorStore) FindByEmail(ctx context.Context, email string) (*Operator, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+operatorColumns+` from admin_operators where email=$1`, email)
	return scanOperator(row)
}

func (s *operatorStore) List(ctx context.Context) ([]*Operator, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+operatorColumns+` from admin_operators order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *operatorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from admin_operators`).Scan(&n)
	return n, err
}

func (s *operatorStore) Update(ctx context.Context, id string, upd OperatorUpdate) (*Operator, error) {
	op, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		op.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		op.DisplayName = *upd.DisplayName
	}
	if upd.Phone != nil {
		op.Phone = *upd.Phone
	}
	if upd.RoleID != nil {
		op.RoleID = *upd.RoleID
	}
	if upd.IsActive != nil {
		op.IsActive = *upd.IsActive
	}
	_, err = s.db.ExecContext(ctx,
		`update admin_operators set email=$2, display_name=$3, phone=$4, role_id=$5, is_active=$6, updated_at=now()
		 where id=$1`,
		op.ID, op.Email, op.DisplayName, op.Phone, op.RoleID, op.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *operatorStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update admin_operators set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *operatorStore) SetMFA(ctx context.Context, id string, enabled bool, secret string) error {
	res, err := s.db.ExecContext(ctx,
		`update admin_operators set mfa_enabled=$2, mfa_secret=$3, updated_at=now() where id=$1`,
		id, enabled, secret)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *operatorStore) RecordLoginFailure(ctx context.Context, id string, failedCount int, lockedUntil *time.Time) error {
	var until sql.NullTime
	if lockedUntil != nil {
		until = sql.NullTime{Time: *lockedUntil, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`update admin_operators set failed_login_count=$2, locked_until=$3, updated_at=now() where id=$1`,
		id, failedCount, until)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *operatorStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time, origin string) error {
	res, err := s.db.ExecContext(ctx,
		`update admin_operators
		 set failed_login_count=0, locked_until=null,
		     last_login_at=$2, last_login_ip=$3, login_count=login_count+1, updated_at=now()
		 where id=$1`,
		id, at, origin)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Role store ----------------------------------------------------------------

type roleStore struct{ db DBTX }

const roleColumns = `id, name, display_name, description, is_system, is_active, sort_order, created_at, updated_at`

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description,
		&role.IsSystem, &role.IsActive, &role.SortOrder, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into admin_roles(id, name, display_name, description, is_system, is_active, sort_order)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		role.ID, role.Name, role.DisplayName, role.Description, role.IsSystem, role.IsActive, role.SortOrder,
	)
	return err
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from admin_roles where id=$1`, id)
	return scanRole(row)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from admin_roles where name=$1`, name)
	return scanRole(row)
}

func (s *roleStore) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from admin_roles order by sort_order, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Update(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	role, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		role.DisplayName = *upd.DisplayName
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	if upd.IsActive != nil {
		role.IsActive = *upd.IsActive
	}
	if upd.SortOrder != nil {
		role.SortOrder = *upd.SortOrder
	}
	_, err = s.db.ExecContext(ctx,
		`update admin_roles set display_name=$2, description=$3, is_active=$4, sort_order=$5, updated_at=now()
		 where id=$1`,
		role.ID, role.DisplayName, role.Description, role.IsActive, role.SortOrder,
	)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from admin_roles where id=$1`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// SetPermissions stores codes verbatim so wildcard grants ("*", "user:*")
// survive alongside catalog codes.
func (s *roleStore) SetPermissions(ctx context.Context, roleID string, codes []string) error {
	if _, err := s.db.ExecContext(ctx,
		`delete from admin_role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, code := range codes {
		_, err := s.db.ExecContext(ctx,
			`insert into admin_role_permissions(role_id, code)
			 values($1,$2) on conflict do nothing`, roleID, code)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *roleStore) PermissionCodes(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select code from admin_role_permissions where role_id=$1 order by code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Permission store ----------------------------------------------------------

type permissionStore struct{ db DBTX }

func (s *permissionStore) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into admin_permissions(id, code, name, module, description)
			 values($1,$2,$3,$4,$5) on conflict (code) do nothing`,
			p.ID, p.Code, p.Name, p.Module, p.Description,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, code, name, module, description, created_at from admin_permissions order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Module, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
