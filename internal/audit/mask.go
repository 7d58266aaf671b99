package audit

import "strings"

// Masking helpers for presenting partial identifiers to operators. They are
// independent of the recorder and usable by any component.

// MaskEmail obscures the middle of the local part, keeping the first and
// last character and the full domain. A one-character local part becomes a
// single asterisk.
func MaskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	runes := []rune(local)
	var masked string
	switch {
	case len(runes) == 1:
		masked = "*"
	case len(runes) == 2:
		masked = string(runes[0]) + "***"
	default:
		masked = string(runes[0]) + "***" + string(runes[len(runes)-1])
	}
	return masked + "@" + domain
}

// MaskPhone keeps the first three and last four digits. Numbers too short to
// mask meaningfully are returned unchanged.
func MaskPhone(phone string) string {
	runes := []rune(phone)
	if len(runes) < 7 {
		return phone
	}
	return string(runes[:3]) + "****" + string(runes[len(runes)-4:])
}

// MaskName keeps the first character and replaces the rest with asterisks of
// matching length.
func MaskName(name string) string {
	runes := []rune(name)
	switch len(runes) {
	case 0:
		return name
	case 1:
		return "*"
	default:
		return string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}
}
