package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/devicemgr/internal/device"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is a single journal row.
type Entry struct {
	ID         string      `json:"id"`
	Op         device.Op   `json:"op"`
	DeviceID   int         `json:"device_id"`
	DeviceName string      `json:"device_name"`
	Kind       device.Kind `json:"kind"`
	On         bool        `json:"on"`
	Attribute  int         `json:"attribute"`
	Source     string      `json:"source"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewEntry builds a journal entry from a registry change.
func NewEntry(c device.Change, source string) *Entry {
	return &Entry{
		Op:         c.Op,
		DeviceID:   c.Device.ID,
		DeviceName: c.Device.Name,
		Kind:       c.Device.Kind,
		On:         c.Device.On,
		Attribute:  c.Device.Attribute,
		Source:     source,
	}
}

// Filter controls which entries List returns.
type Filter struct {
	Op       device.Op // optional: only this operation
	DeviceID *int      // optional: only this device id
	Limit    int       // default 50, max 200
	Offset   int       // pagination offset
}

// ListResult contains one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for journal operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in the change_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create appends an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "chg-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	state := 0
	if e.On {
		state = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO change_log (id, op, device_id, device_name, kind, state, attribute, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Op), e.DeviceID, e.DeviceName, int(e.Kind), state, e.Attribute,
		e.Source, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting change log entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Op != "" {
		conditions = append(conditions, "op = ?")
		args = append(args, string(filter.Op))
	}
	if filter.DeviceID != nil {
		conditions = append(conditions, "device_id = ?")
		args = append(args, *filter.DeviceID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM change_log " + where //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting change log entries: %w", err)
	}

	// rowid follows insertion order, which timestamps cannot break ties on.
	query := "SELECT id, op, device_id, device_name, kind, state, attribute, source, created_at FROM change_log " + //nolint:gosec // WHERE built from parameterised conditions, not user input
		where + " ORDER BY rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			op        string
			kind      int
			state     int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &op, &e.DeviceID, &e.DeviceName, &kind, &state,
			&e.Attribute, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning change log entry: %w", err)
		}
		e.Op = device.Op(op)
		e.Kind = device.Kind(kind)
		e.On = state == 1

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing change log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
