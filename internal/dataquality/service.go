package dataquality

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kassabook.org/internal/audit"
)

// ErrBadTransition is returned when a status change is not allowed by the
// workflow.
var ErrBadTransition = errors.New("dataquality: status transition not allowed")

// Service exposes the finding workflow: reporting, listing, and resolution.
type Service struct {
	store    Store
	recorder *audit.Recorder
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRecorder wires the audit recorder for resolution events.
func WithRecorder(r *audit.Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source (for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the data quality service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("dataquality: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Report records a new finding in the detected state.
func (s *Service) Report(ctx context.Context, check *Check) error {
	if strings.TrimSpace(check.CheckType) == "" {
		return errors.New("dataquality: check type is required")
	}
	if check.TotalRecords < 0 || check.AffectedRecords < 0 {
		return errors.New("dataquality: record counts cannot be negative")
	}
	if check.Severity == "" {
		check.Severity = SeverityMedium
	}
	check.Status = StatusDetected
	check.DetectedAt = s.now().UTC()
	return s.store.Create(ctx, check)
}

// Get loads one finding.
func (s *Service) Get(ctx context.Context, id string) (*Check, error) {
	return s.store.Find(ctx, id)
}

// List returns findings matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Check, error) {
	return s.store.List(ctx, f)
}

// Resolve moves a finding along the workflow. Terminal statuses record who
// resolved the finding and when; the change is audited.
func (s *Service) Resolve(ctx context.Context, actorID, actorHandle, checkID, status, note string, meta *audit.RequestMeta) (*Check, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadTransition, status)
	}
	check, err := s.store.Find(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(check.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, check.Status, status)
	}

	var resolvedAt *time.Time
	resolvedBy := check.ResolvedBy
	if status == StatusFixed || status == StatusIgnored {
		at := s.now().UTC()
		resolvedAt = &at
		resolvedBy = actorID
	}
	if err := s.store.SetStatus(ctx, check.ID, status, resolvedBy, note, resolvedAt); err != nil {
		return nil, err
	}

	previous := check.Status
	check.Status = status
	check.ResolvedBy = resolvedBy
	check.ResolvedAt = resolvedAt
	check.ResolutionNote = note

	if s.recorder != nil {
		if _, err := s.recorder.Record(ctx, audit.Event{
			OperatorID:     actorID,
			OperatorHandle: actorHandle,
			Action:         "data.quality.resolve",
			Module:         "data",
			TargetType:     "data_quality_check",
			TargetID:       check.ID,
			TargetName:     check.CheckType,
			Changes:        map[string]any{"status": map[string]any{"from": previous, "to": status}},
			Request:        meta,
			Status:         audit.StatusSuccess,
		}); err != nil {
			return nil, err
		}
	}
	return check, nil
}
