package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx; passing the enclosing *sql.Tx
// keeps the audit write atomic with the audited mutation.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Filter narrows audit log queries.
type Filter struct {
	OperatorID string
	Module     string
	Action     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// EntryStore persists and queries audit entries. Entries are append-only.
type EntryStore interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, f Filter) ([]*Entry, error)
}

var _ EntryStore = (*PGEntryStore)(nil)

// PGEntryStore implements EntryStore on PostgreSQL.
type PGEntryStore struct {
	db DBTX
}

func NewPGEntryStore(db DBTX) *PGEntryStore {
	return &PGEntryStore{db: db}
}

func (s *PGEntryStore) Append(ctx context.Context, entry *Entry) error {
	requestData, err := marshalPayload(entry.RequestData)
	if err != nil {
		return err
	}
	responseData, err := marshalPayload(entry.ResponseData)
	if err != nil {
		return err
	}
	changes, err := marshalPayload(entry.Changes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`insert into admin_audit_logs(
			id, operator_id, operator_handle, action, action_name, module,
			target_type, target_id, target_name, description,
			request_data, response_data, changes,
			ip_address, user_agent, request_method, request_path,
			status, error_message, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		entry.ID, entry.OperatorID, entry.OperatorHandle, entry.Action, entry.ActionName, entry.Module,
		entry.TargetType, entry.TargetID, entry.TargetName, entry.Description,
		requestData, responseData, changes,
		entry.IPAddress, entry.UserAgent, entry.RequestMethod, entry.RequestPath,
		entry.Status, entry.ErrorMessage, entry.CreatedAt,
	)
	return err
}

const defaultListLimit = 50

func (s *PGEntryStore) List(ctx context.Context, f Filter) ([]*Entry, error) {
	query := `select id, operator_id, operator_handle, action, action_name, module,
		target_type, target_id, target_name, description,
		request_data, response_data, changes,
		ip_address, user_agent, request_method, request_path,
		status, error_message, created_at
	 from admin_audit_logs where 1=1`

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.OperatorID != "" {
		query += " and operator_id=" + arg(f.OperatorID)
	}
	if f.Module != "" {
		query += " and module=" + arg(f.Module)
	}
	if f.Action != "" {
		query += " and action=" + arg(f.Action)
	}
	if !f.From.IsZero() {
		query += " and created_at >= " + arg(f.From)
	}
	if !f.To.IsZero() {
		query += " and created_at < " + arg(f.To)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " order by created_at desc limit " + arg(limit)
	if f.Offset > 0 {
		query += " offset " + arg(f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry        Entry
			requestData  []byte
			responseData []byte
			changes      []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.OperatorID, &entry.OperatorHandle, &entry.Action, &entry.ActionName, &entry.Module,
			&entry.TargetType, &entry.TargetID, &entry.TargetName, &entry.Description,
			&requestData, &responseData, &changes,
			&entry.IPAddress, &entry.UserAgent, &entry.RequestMethod, &entry.RequestPath,
			&entry.Status, &entry.ErrorMessage, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := unmarshalPayload(requestData, &entry.RequestData); err != nil {
			return nil, fmt.Errorf("audit: decode request_data for entry %s: %w", entry.ID, err)
		}
		if err := unmarshalPayload(responseData, &entry.ResponseData); err != nil {
			return nil, fmt.Errorf("audit: decode response_data for entry %s: %w", entry.ID, err)
		}
		if err := unmarshalPayload(changes, &entry.Changes); err != nil {
			return nil, fmt.Errorf("audit: decode changes for entry %s: %w", entry.ID, err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func marshalPayload(data map[string]any) ([]byte, error) {
	if data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(data)
}

func unmarshalPayload(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
