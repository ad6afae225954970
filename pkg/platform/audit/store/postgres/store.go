package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "rollcall/pkg/platform/audit"
	txcontext "rollcall/pkg/platform/tx"
)

// Store appends audit events to the export_audit table. The table is
// append-only from this service's perspective; retention is handled
// externally.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	query := `
		INSERT INTO export_audit (
			id, action, staff_id, request_id, client_ip, user_agent,
			total_records, min_confidence, recent_days, include_metadata,
			survivor_id, merged_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(event.Action),
		event.StaffID.String(),
		nullString(event.RequestID),
		nullString(event.ClientIP),
		nullString(event.UserAgent),
		event.TotalRecords,
		nullString(event.MinConfidence),
		nullInt(event.RecentDays),
		event.IncludeMetadata,
		nullString(event.SurvivorID),
		nullInt(event.MergedCount),
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullInt(value int) sql.NullInt64 {
	if value == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(value), Valid: true}
}
