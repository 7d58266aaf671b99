package adminauth

import (
	"sort"
	"strings"
)

// PermissionAll is the reserved global wildcard granted to superadmins.
const PermissionAll = "*"

// PermissionSet holds effective permission codes for one operator.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from codes, dropping blanks and duplicates.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		set[code] = struct{}{}
	}
	return set
}

// Has reports an exact-code membership check.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Allows answers the three-tier authorization check in precedence order:
// global wildcard, exact match, then "module:*" where module is everything
// before the first ':' of the required code.
func (s PermissionSet) Allows(required string) bool {
	if s.Has(PermissionAll) {
		return true
	}
	if s.Has(required) {
		return true
	}
	module, _, _ := strings.Cut(required, ":")
	return s.Has(module + ":" + PermissionAll)
}

// Codes returns the sorted member codes.
func (s PermissionSet) Codes() []string {
	out := make([]string, 0, len(s))
	for code := range s {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Permission codes referenced directly by the admin surface.
const (
	PermDashboardView = "dashboard:view"

	PermUserList    = "user:list"
	PermUserDetail  = "user:detail"
	PermUserEdit    = "user:edit"
	PermUserDisable = "user:disable"
	PermUserExport  = "user:export"

	PermDataIntegrityCheck = "data:integrity:check"

	PermAdminList     = "admin:list"
	PermAdminCreate   = "admin:create"
	PermAdminEdit     = "admin:edit"
	PermAdminRoleList = "admin:role:list"
	PermAdminRoleEdit = "admin:role:edit"

	PermLogView   = "log:view"
	PermLogExport = "log:export"
)

// BuiltinPermissions is the seeded permission catalog.
var BuiltinPermissions = []Permission{
	{Code: PermDashboardView, Name: "View dashboard", Module: "dashboard"},

	{Code: PermUserList, Name: "List users", Module: "user"},
	{Code: PermUserDetail, Name: "View user detail", Module: "user"},
	{Code: PermUserEdit, Name: "Edit users", Module: "user"},
	{Code: PermUserDisable, Name: "Disable or enable users", Module: "user"},
	{Code: "user:delete", Name: "Delete users", Module: "user"},
	{Code: PermUserExport, Name: "Export user data", Module: "user"},

	{Code: "data:transaction:view", Name: "List transactions", Module: "data"},
	{Code: "data:transaction:edit", Name: "Edit transactions", Module: "data"},
	{Code: "data:transaction:delete", Name: "Delete transactions", Module: "data"},
	{Code: "data:transaction:export", Name: "Export transactions", Module: "data"},
	{Code: "data:book:view", Name: "List books", Module: "data"},
	{Code: "data:book:edit", Name: "Edit books", Module: "data"},
	{Code: "data:account:view", Name: "List accounts", Module: "data"},
	{Code: "data:account:edit", Name: "Edit accounts", Module: "data"},
	{Code: "data:category:view", Name: "List categories", Module: "data"},
	{Code: "data:category:edit", Name: "Edit system categories", Module: "data"},
	{Code: "data:backup:view", Name: "List backups", Module: "data"},
	{Code: "data:backup:edit", Name: "Edit backup policy", Module: "data"},
	{Code: "data:backup:delete", Name: "Delete backups", Module: "data"},
	{Code: PermDataIntegrityCheck, Name: "Run data integrity checks", Module: "data"},

	{Code: "stats:user", Name: "View user statistics", Module: "stats"},
	{Code: "stats:transaction", Name: "View transaction statistics", Module: "stats"},
	{Code: "stats:report", Name: "Generate reports", Module: "stats"},
	{Code: "stats:export", Name: "Export reports", Module: "stats"},

	{Code: "monitor:view", Name: "View system monitoring", Module: "monitor"},
	{Code: "monitor:alert", Name: "Manage alerts", Module: "monitor"},

	{Code: "setting:view", Name: "View system settings", Module: "setting"},
	{Code: "setting:edit", Name: "Edit system settings", Module: "setting"},

	{Code: PermAdminList, Name: "List operators", Module: "admin"},
	{Code: PermAdminCreate, Name: "Create operators", Module: "admin"},
	{Code: PermAdminEdit, Name: "Edit operators", Module: "admin"},
	{Code: "admin:delete", Name: "Delete operators", Module: "admin"},
	{Code: PermAdminRoleList, Name: "List roles", Module: "admin"},
	{Code: PermAdminRoleEdit, Name: "Edit roles", Module: "admin"},

	{Code: PermLogView, Name: "View audit log", Module: "log"},
	{Code: PermLogExport, Name: "Export audit log", Module: "log"},
}

// BuiltinRole describes a system role seeded at startup.
type BuiltinRole struct {
	Name        string
	DisplayName string
	Description string
	Permissions []string
}

// BuiltinRoles are protected from deletion once created.
var BuiltinRoles = []BuiltinRole{
	{
		Name:        "super_admin",
		DisplayName: "Super administrator",
		Description: "Full access to every admin capability",
		Permissions: []string{PermissionAll},
	},
	{
		Name:        "operator",
		DisplayName: "Operations manager",
		Description: "Day-to-day user and data management",
		Permissions: []string{
			PermDashboardView,
			PermUserList, PermUserDetail, PermUserEdit, PermUserDisable, PermUserExport,
			"data:transaction:view", "data:transaction:export",
			"data:book:view", "data:account:view",
			"data:category:view", "data:category:edit",
			"data:backup:view", "data:backup:delete",
			PermDataIntegrityCheck,
			"stats:user", "stats:transaction", "stats:report", "stats:export",
			PermLogView,
		},
	},
	{
		Name:        "analyst",
		DisplayName: "Data analyst",
		Description: "Read-only access for analysis",
		Permissions: []string{
			PermDashboardView,
			PermUserList, PermUserDetail,
			"data:transaction:view",
			"data:book:view", "data:account:view", "data:category:view",
			"stats:user", "stats:transaction", "stats:report", "stats:export",
		},
	},
	{
		Name:        "customer_service",
		DisplayName: "Customer service",
		Description: "Look up users and transactions to resolve tickets",
		Permissions: []string{
			PermDashboardView,
			PermUserList, PermUserDetail,
			"data:transaction:view",
		},
	},
	{
		Name:        "auditor",
		DisplayName: "Auditor",
		Description: "Security review of the audit trail",
		Permissions: []string{
			PermDashboardView,
			PermLogView, PermLogExport,
		},
	},
}
