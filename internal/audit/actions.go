package audit

// actionNames maps action codes to the human-readable names stored alongside
// them. Unknown codes fall back to the raw code.
var actionNames = map[string]string{
	"auth.login":           "Operator login",
	"auth.logout":          "Operator logout",
	"auth.password_change": "Password change",
	"auth.mfa_enable":      "Enable second factor",
	"auth.mfa_disable":     "Disable second factor",
	"auth.denied":          "Permission denied",

	"user.view":           "View user",
	"user.list":           "List users",
	"user.detail":         "View user detail",
	"user.edit":           "Edit user",
	"user.disable":        "Disable user",
	"user.enable":         "Enable user",
	"user.delete":         "Delete user",
	"user.reset_password": "Reset user password",
	"user.export":         "Export user data",

	"transaction.list":   "List transactions",
	"transaction.detail": "View transaction detail",
	"transaction.edit":   "Edit transaction",
	"transaction.delete": "Delete transaction",
	"transaction.export": "Export transactions",

	"data.category.create": "Create system category",
	"data.category.edit":   "Edit system category",
	"data.category.delete": "Delete system category",
	"data.backup.delete":   "Delete backup",
	"data.quality.resolve": "Resolve data quality finding",

	"setting.view": "View settings",
	"setting.edit": "Edit settings",

	"admin.create":      "Create operator",
	"admin.edit":        "Edit operator",
	"admin.disable":     "Disable operator",
	"admin.delete":      "Delete operator",
	"admin.role.create": "Create role",
	"admin.role.edit":   "Edit role",
	"admin.role.delete": "Delete role",
}

// ActionName resolves the display name for an action code.
func ActionName(code string) string {
	if name, ok := actionNames[code]; ok {
		return name
	}
	return code
}
