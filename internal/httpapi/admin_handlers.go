package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"kassabook.org/internal/adminauth"
	"kassabook.org/internal/audit"
)

func (a *API) handleOperators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.ensurePermission(w, r, adminauth.PermAdminList); !ok {
			return
		}
		operators, err := a.auth.ListOperators(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"operators": operators})

	case http.MethodPost:
		actor, ok := a.ensurePermission(w, r, adminauth.PermAdminCreate)
		if !ok {
			return
		}
		var req adminauth.CreateOperatorParams
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		op, err := a.auth.CreateOperator(r.Context(), actor, req, audit.MetaFromRequest(r))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/admin/v1/operators/%s", op.ID))
		writeJSON(w, http.StatusCreated, op)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

type updateOperatorRequest struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Phone       *string `json:"phone"`
	RoleID      *string `json:"role_id"`
	IsActive    *bool   `json:"is_active"`
}

func (a *API) handleOperatorResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/v1/operators/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := a.ensurePermission(w, r, adminauth.PermAdminList); !ok {
			return
		}
		op, err := a.auth.GetOperator(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, op)

	case http.MethodPatch:
		actor, ok := a.ensurePermission(w, r, adminauth.PermAdminEdit)
		if !ok {
			return
		}
		var req updateOperatorRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		op, err := a.auth.UpdateOperator(r.Context(), actor, id, adminauth.OperatorUpdate{
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Phone:       req.Phone,
			RoleID:      req.RoleID,
			IsActive:    req.IsActive,
		}, audit.MetaFromRequest(r))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, op)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleList); !ok {
			return
		}
		roles, err := a.auth.ListRoles(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})

	case http.MethodPost:
		actor, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleEdit)
		if !ok {
			return
		}
		var req adminauth.CreateRoleParams
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.CreateRole(r.Context(), actor, req, audit.MetaFromRequest(r))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/admin/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

type updateRoleRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   *int    `json:"sort_order"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if len(parts) == 2 && parts[1] == "permissions" {
		a.handleRolePermissions(w, r, parts[0])
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		if _, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleList); !ok {
			return
		}
		role, codes, err := a.auth.GetRole(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role":        role,
			"permissions": codes,
		})

	case http.MethodPatch:
		actor, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleEdit)
		if !ok {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.UpdateRole(r.Context(), actor, id, adminauth.RoleUpdate{
			DisplayName: req.DisplayName,
			Description: req.Description,
			IsActive:    req.IsActive,
			SortOrder:   req.SortOrder,
		}, audit.MetaFromRequest(r))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)

	case http.MethodDelete:
		actor, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleEdit)
		if !ok {
			return
		}
		if err := a.auth.DeleteRole(r.Context(), actor, id, audit.MetaFromRequest(r)); err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actor, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleEdit)
	if !ok {
		return
	}
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.SetRolePermissions(r.Context(), actor, roleID, req.Permissions, audit.MetaFromRequest(r)); err != nil {
		handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, adminauth.PermAdminRoleList); !ok {
		return
	}
	perms, err := a.auth.ListPermissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
