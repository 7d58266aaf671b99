package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kassabook.org/internal/audit"
)

// CreateOperatorParams carries the fields of a new operator account.
type CreateOperatorParams struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	DisplayName  string `json:"display_name"`
	Phone        string `json:"phone"`
	RoleID       string `json:"role_id"`
	IsSuperadmin bool   `json:"is_superadmin"`
}

// CreateRoleParams carries the fields of a new role.
type CreateRoleParams struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	SortOrder   int      `json:"sort_order"`
	Permissions []string `json:"permissions"`
}

// CreateOperator provisions a new operator account. The actor is recorded as
// the creator and in the audit trail.
func (s *Service) CreateOperator(ctx context.Context, actor *Operator, p CreateOperatorParams, meta *audit.RequestMeta) (*Operator, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	if p.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if !strings.Contains(p.Email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if err := s.validateNewPassword(p.Password); err != nil {
		return nil, err
	}
	if p.RoleID != "" {
		if _, err := s.store.Roles(ctx).Find(ctx, p.RoleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: role %s does not exist", ErrValidation, p.RoleID)
			}
			return nil, err
		}
	}

	operators := s.store.Operators(ctx)
	if _, err := operators.FindByUsername(ctx, p.Username); err == nil {
		return nil, fmt.Errorf("%w: username %s is taken", ErrConflict, p.Username)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := operators.FindByEmail(ctx, p.Email); err == nil {
		return nil, fmt.Errorf("%w: email %s is taken", ErrConflict, p.Email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	op := &Operator{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: hash,
		DisplayName:  p.DisplayName,
		Phone:        p.Phone,
		RoleID:       p.RoleID,
		IsActive:     true,
		IsSuperadmin: p.IsSuperadmin,
	}
	if actor != nil {
		op.CreatedBy = actor.ID
	}
	if err := operators.Create(ctx, op); err != nil {
		return nil, err
	}

	if s.recorder != nil && actor != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actor.ID,
			OperatorHandle: actor.Username,
			Action:         "admin.create",
			Module:         "admin",
			TargetType:     "operator",
			TargetID:       op.ID,
			TargetName:     op.Username,
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// GetOperator loads one operator by id.
func (s *Service) GetOperator(ctx context.Context, id string) (*Operator, error) {
	return s.store.Operators(ctx).Find(ctx, id)
}

// ListOperators returns all operator accounts.
func (s *Service) ListOperators(ctx context.Context) ([]*Operator, error) {
	return s.store.Operators(ctx).List(ctx)
}

// UpdateOperator applies a partial update to an operator account.
func (s *Service) UpdateOperator(ctx context.Context, actor *Operator, id string, upd OperatorUpdate, meta *audit.RequestMeta) (*Operator, error) {
	if upd.Email != nil && !strings.Contains(*upd.Email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if upd.RoleID != nil && *upd.RoleID != "" {
		if _, err := s.store.Roles(ctx).Find(ctx, *upd.RoleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: role %s does not exist", ErrValidation, *upd.RoleID)
			}
			return nil, err
		}
	}

	before, err := s.store.Operators(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil && *upd.Email != before.Email {
		if other, err := s.store.Operators(ctx).FindByEmail(ctx, *upd.Email); err == nil && other.ID != id {
			return nil, fmt.Errorf("%w: email %s is taken", ErrConflict, *upd.Email)
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	changes := map[string]any{}
	diff(changes, "email", upd.Email, before.Email)
	diff(changes, "display_name", upd.DisplayName, before.DisplayName)
	diff(changes, "phone", upd.Phone, before.Phone)
	diff(changes, "role_id", upd.RoleID, before.RoleID)
	if upd.IsActive != nil && *upd.IsActive != before.IsActive {
		changes["is_active"] = map[string]any{"from": before.IsActive, "to": *upd.IsActive}
	}

	op, err := s.store.Operators(ctx).Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil && actor != nil {
		action := "admin.edit"
		if upd.IsActive != nil && !*upd.IsActive {
			action = "admin.disable"
		}
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actor.ID,
			OperatorHandle: actor.Username,
			Action:         action,
			Module:         "admin",
			TargetType:     "operator",
			TargetID:       op.ID,
			TargetName:     op.Username,
			Changes:        changes,
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// diff records a before/after pair when the optional update differs from the
// current value.
func diff(changes map[string]any, field string, next *string, current string) {
	if next == nil || *next == current {
		return
	}
	changes[field] = map[string]any{"from": current, "to": *next}
}

// CreateRole creates a custom role with the given permission codes.
func (s *Service) CreateRole(ctx context.Context, actor *Operator, p CreateRoleParams, meta *audit.RequestMeta) (*Role, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrValidation)
	}
	roles := s.store.Roles(ctx)
	if _, err := roles.FindByName(ctx, p.Name); err == nil {
		return nil, fmt.Errorf("%w: role %s already exists", ErrConflict, p.Name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	codes, err := s.normalizeCodes(ctx, p.Permissions)
	if err != nil {
		return nil, err
	}

	role := &Role{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		IsActive:    true,
		SortOrder:   p.SortOrder,
	}
	if err := roles.Create(ctx, role); err != nil {
		return nil, err
	}
	if err := roles.SetPermissions(ctx, role.ID, codes); err != nil {
		return nil, err
	}

	if s.recorder != nil && actor != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actor.ID,
			OperatorHandle: actor.Username,
			Action:         "admin.role.create",
			Module:         "admin",
			TargetType:     "role",
			TargetID:       role.ID,
			TargetName:     role.Name,
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return nil, err
		}
	}
	return role, nil
}

// GetRole loads one role with its permission codes resolved.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, []string, error) {
	role, err := s.store.Roles(ctx).Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	codes, err := s.store.Roles(ctx).PermissionCodes(ctx, role.ID)
	if err != nil {
		return nil, nil, err
	}
	return role, codes, nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx)
}

// UpdateRole applies a partial update to a role.
func (s *Service) UpdateRole(ctx context.Context, actor *Operator, id string, upd RoleUpdate, meta *audit.RequestMeta) (*Role, error) {
	before, err := s.store.Roles(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]any{}
	diff(changes, "display_name", upd.DisplayName, before.DisplayName)
	diff(changes, "description", upd.Description, before.Description)
	if upd.IsActive != nil && *upd.IsActive != before.IsActive {
		changes["is_active"] = map[string]any{"from": before.IsActive, "to": *upd.IsActive}
	}

	role, err := s.store.Roles(ctx).Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if s.recorder != nil && actor != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actor.ID,
			OperatorHandle: actor.Username,
			Action:         "admin.role.edit",
			Module:         "admin",
			TargetType:     "role",
			TargetID:       role.ID,
			TargetName:     role.Name,
			Changes:        changes,
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return nil, err
		}
	}
	return role, nil
}

// SetRolePermissions replaces the role's permission codes.
func (s *Service) SetRolePermissions(ctx context.Context, actor *Operator, roleID string, codes []string, meta *audit.RequestMeta) error {
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return err
	}
	normalized, err := s.normalizeCodes(ctx, codes)
	if err != nil {
		return err
	}
	if err := s.store.Roles(ctx).SetPermissions(ctx, role.ID, normalized); err != nil {
		return err
	}

	if s.recorder != nil && actor != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actor.ID,
			OperatorHandle: actor.Username,
			Action:         "admin.role.edit",
			Module:         "admin",
			TargetType:     "role",
			TargetID:       role.ID,
			TargetName:     role.Name,
			Changes:        map[string]any{"permissions": normalized},
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRole removes a custom role. System roles are protected.
func (s *Service) DeleteRole(ctx context.Context, actor *Operator, id string, meta *audit.RequestMeta) error {
	role, err := s.store.Roles(ctx).Find(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", ErrValidation)
	}
	if err := s.store.Roles(ctx).Delete(ctx, role.ID); err != nil {
		return err
	}

	if s.recorder != nil && actor != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actor.ID,
			OperatorHandle: actor.Username,
			Action:         "admin.role.delete",
			Module:         "admin",
			TargetType:     "role",
			TargetID:       role.ID,
			TargetName:     role.Name,
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx)
}

// normalizeCodes trims, dedupes, and validates permission codes against the
// catalog. Wildcards pass without a catalog entry.
func (s *Service) normalizeCodes(ctx context.Context, codes []string) ([]string, error) {
	known, err := s.store.Permissions(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]struct{}, len(known))
	for _, p := range known {
		catalog[p.Code] = struct{}{}
	}

	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		if !isWildcardCode(code) {
			if _, ok := catalog[code]; !ok {
				return nil, fmt.Errorf("%w: unknown permission %s", ErrValidation, code)
			}
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

func isWildcardCode(code string) bool {
	return code == PermissionAll || strings.HasSuffix(code, ":"+PermissionAll)
}

// EnsureBuiltins seeds the permission catalog and system roles. Existing
// roles are left untouched so operator customizations survive restarts.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	if err := s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions); err != nil {
		return err
	}
	roles := s.store.Roles(ctx)
	for i, builtin := range BuiltinRoles {
		_, err := roles.FindByName(ctx, builtin.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		role := &Role{
			Name:        builtin.Name,
			DisplayName: builtin.DisplayName,
			Description: builtin.Description,
			IsSystem:    true,
			IsActive:    true,
			SortOrder:   i,
		}
		if err := roles.Create(ctx, role); err != nil {
			return err
		}
		if err := roles.SetPermissions(ctx, role.ID, builtin.Permissions); err != nil {
			return err
		}
	}
	return nil
}

// BootstrapSuperadmin creates the first operator when the table is empty.
// It returns nil without error when operators already exist.
func (s *Service) BootstrapSuperadmin(ctx context.Context, username, email, password string) (*Operator, error) {
	operators := s.store.Operators(ctx)
	n, err := operators.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, nil
	}
	if err := s.validateNewPassword(password); err != nil {
		return nil, err
	}

	var roleID string
	if role, err := s.store.Roles(ctx).FindByName(ctx, "super_admin"); err == nil {
		roleID = role.ID
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	op := &Operator{
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		DisplayName:  "Superadmin",
		RoleID:       roleID,
		IsActive:     true,
		IsSuperadmin: true,
		CreatedAt:    s.now().UTC(),
		UpdatedAt:    s.now().UTC(),
	}
	if err := operators.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}
