package dataquality

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kassabook.org/internal/ids"
)

// ErrNotFound is returned when a finding does not exist.
var ErrNotFound = errors.New("dataquality: check not found")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Filter narrows check listings.
type Filter struct {
	Status   string
	Severity string
	Limit    int
	Offset   int
}

// Store persists data quality findings.
type Store interface {
	Create(ctx context.Context, check *Check) error
	Find(ctx context.Context, id string) (*Check, error)
	List(ctx context.Context, f Filter) ([]*Check, error)
	SetStatus(ctx context.Context, id, status, resolvedBy, note string, resolvedAt *time.Time) error
}

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db DBTX
}

func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

const checkColumns = `id, check_type, severity, target_table, target_id, description, details,
	total_records, affected_records,
	status, detected_at, resolved_by, resolved_at, resolution_note`

func (s *PGStore) Create(ctx context.Context, check *Check) error {
	if check.ID == "" {
		check.ID = ids.New()
	}
	details, err := json.Marshal(check.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into data_quality_checks(id, check_type, severity, target_table, target_id,
			description, details, total_records, affected_records, status, detected_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		check.ID, check.CheckType, check.Severity, check.TargetTable, check.TargetID,
		check.Description, details, check.TotalRecords, check.AffectedRecords,
		check.Status, check.DetectedAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Check, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+checkColumns+` from data_quality_checks where id=$1`, id)
	return scanCheck(row)
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]*Check, error) {
	query := `select ` + checkColumns + ` from data_quality_checks where 1=1`

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		query += " and status=" + arg(f.Status)
	}
	if f.Severity != "" {
		query += " and severity=" + arg(f.Severity)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " order by detected_at desc limit " + arg(limit)
	if f.Offset > 0 {
		query += " offset " + arg(f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []*Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func (s *PGStore) SetStatus(ctx context.Context, id, status, resolvedBy, note string, resolvedAt *time.Time) error {
	var at sql.NullTime
	if resolvedAt != nil {
		at = sql.NullTime{Time: *resolvedAt, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`update data_quality_checks
		 set status=$2, resolved_by=$3, resolution_note=$4, resolved_at=$5
		 where id=$1`,
		id, status, resolvedBy, note, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (*Check, error) {
	var (
		check      Check
		details    []byte
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&check.ID, &check.CheckType, &check.Severity, &check.TargetTable, &check.TargetID,
		&check.Description, &details,
		&check.TotalRecords, &check.AffectedRecords,
		&check.Status, &check.DetectedAt, &check.ResolvedBy, &resolvedAt, &check.ResolutionNote,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &check.Details); err != nil {
			return nil, fmt.Errorf("dataquality: decode details for %s: %w", check.ID, err)
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		check.ResolvedAt = &t
	}
	return &check, nil
}
