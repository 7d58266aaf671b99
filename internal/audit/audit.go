// Package audit produces the immutable, privacy-preserving trail behind
// every privileged admin action.
package audit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"kassabook.org/internal/ids"
	"kassabook.org/internal/obs"
)

// Entry outcome values.
const (
	StatusFailure = 0
	StatusSuccess = 1
)

const maxUserAgentLen = 500

// Entry is one audit record. Entries are written once inside the unit of
// work of the action they document and never mutated afterwards. The handle
// is stored redundantly so the trail survives operator disablement.
type Entry struct {
	ID string `json:"id"`

	OperatorID     string `json:"operator_id"`
	OperatorHandle string `json:"operator_handle"`

	Action     string `json:"action"`
	ActionName string `json:"action_name"`
	Module     string `json:"module"`

	TargetType string `json:"target_type,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	TargetName string `json:"target_name,omitempty"`

	Description  string         `json:"description,omitempty"`
	RequestData  map[string]any `json:"request_data,omitempty"`
	ResponseData map[string]any `json:"response_data,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`

	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	RequestMethod string `json:"request_method,omitempty"`
	RequestPath   string `json:"request_path,omitempty"`

	Status       int    `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Event is the input to Recorder.Record.
type Event struct {
	OperatorID     string
	OperatorHandle string

	Action string
	Module string

	TargetType string
	TargetID   string
	TargetName string

	Description  string
	RequestData  map[string]any
	ResponseData map[string]any
	Changes      map[string]any

	Request *RequestMeta

	Status       int
	ErrorMessage string
}

// RequestMeta carries transport-level context for an audited request.
type RequestMeta struct {
	ForwardedFor string
	RealIP       string
	RemoteAddr   string
	UserAgent    string
	Method       string
	Path         string
}

// MetaFromRequest captures audit context from an inbound HTTP request.
func MetaFromRequest(r *http.Request) *RequestMeta {
	if r == nil {
		return nil
	}
	return &RequestMeta{
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RealIP:       r.Header.Get("X-Real-IP"),
		RemoteAddr:   r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Method:       r.Method,
		Path:         r.URL.Path,
	}
}

// ClientIP resolves the client origin: first forwarded-for entry, then the
// real-IP header, then the transport peer address.
func (m *RequestMeta) ClientIP() string {
	if m == nil {
		return ""
	}
	if m.ForwardedFor != "" {
		first, _, _ := strings.Cut(m.ForwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if m.RealIP != "" {
		return strings.TrimSpace(m.RealIP)
	}
	if m.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(m.RemoteAddr)
	if err != nil {
		return m.RemoteAddr
	}
	return host
}

// Recorder builds sanitized entries and persists them through an EntryStore.
// A failed write is a hard failure of the enclosing request, never dropped.
type Recorder struct {
	store EntryStore
	now   func() time.Time
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store EntryStore, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: entry store is required")
	}
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record sanitizes the event payloads, resolves the action name, and appends
// the entry within the caller's unit of work (pass the store a *sql.Tx when
// the audited action runs in one).
func (r *Recorder) Record(ctx context.Context, ev Event) (*Entry, error) {
	if strings.TrimSpace(ev.OperatorID) == "" {
		return nil, errors.New("audit: operator id is required")
	}
	if strings.TrimSpace(ev.Action) == "" {
		return nil, errors.New("audit: action is required")
	}
	if strings.TrimSpace(ev.Module) == "" {
		return nil, errors.New("audit: module is required")
	}

	now := r.now().UTC()
	entry := &Entry{
		ID:             ids.NewAt(now),
		OperatorID:     ev.OperatorID,
		OperatorHandle: ev.OperatorHandle,
		Action:         ev.Action,
		ActionName:     ActionName(ev.Action),
		Module:         ev.Module,
		TargetType:     ev.TargetType,
		TargetID:       ev.TargetID,
		TargetName:     ev.TargetName,
		Description:    ev.Description,
		RequestData:    sanitizePayload(ev.RequestData),
		ResponseData:   sanitizePayload(ev.ResponseData),
		Changes:        ev.Changes,
		Status:         ev.Status,
		ErrorMessage:   ev.ErrorMessage,
		CreatedAt:      now,
	}
	if ev.Request != nil {
		entry.IPAddress = ev.Request.ClientIP()
		entry.UserAgent = truncate(ev.Request.UserAgent, maxUserAgentLen)
		entry.RequestMethod = ev.Request.Method
		entry.RequestPath = ev.Request.Path
	}

	if err := r.store.Append(ctx, entry); err != nil {
		obs.ObserveAuditWrite("error")
		return nil, fmt.Errorf("audit: append entry: %w", err)
	}
	obs.ObserveAuditWrite("ok")
	return entry, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
