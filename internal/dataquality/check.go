// Package dataquality tracks integrity findings over the bookkeeping data
// and the operator workflow that resolves them.
package dataquality

import "time"

// Check statuses. A finding starts detected and moves forward only.
const (
	StatusDetected      = "detected"
	StatusInvestigating = "investigating"
	StatusFixed         = "fixed"
	StatusIgnored       = "ignored"
)

// Severity levels.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Check is one data integrity finding.
type Check struct {
	ID          string         `json:"id"`
	CheckType   string         `json:"check_type"`
	Severity    string         `json:"severity"`
	TargetTable string         `json:"target_table,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`

	// TotalRecords is the number of records examined by the check,
	// AffectedRecords how many of them failed it.
	TotalRecords    int64 `json:"total_records"`
	AffectedRecords int64 `json:"affected_records"`

	Status string `json:"status"`

	DetectedAt     time.Time  `json:"detected_at"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
}

// Resolved reports whether the finding reached a terminal status.
func (c *Check) Resolved() bool {
	return c.Status == StatusFixed || c.Status == StatusIgnored
}

var transitions = map[string][]string{
	StatusDetected:      {StatusInvestigating, StatusFixed, StatusIgnored},
	StatusInvestigating: {StatusFixed, StatusIgnored},
}

// CanTransition reports whether a finding may move from one status to
// another. Terminal statuses have no outgoing transitions.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known check status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDetected, StatusInvestigating, StatusFixed, StatusIgnored:
		return true
	}
	return false
}
