package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"rollcall/internal/confidence"
	"rollcall/internal/contact/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
)

// Postgres persists contacts and their relationship tables in PostgreSQL.
//
// Merge participates in the caller's transaction when one is present in the
// context (see pkg/platform/tx); the service layer wraps merges in a tx
// runner so repoint-then-delete is atomic.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// normalizedNameSQL must match models.NormalizeName: lowercase, trimmed,
// interior whitespace collapsed.
const normalizedNameSQL = `lower(regexp_replace(btrim(name), '\s+', ' ', 'g'))`

const contactColumns = `
	id, name, emails, source_system,
	billing_line1, billing_line2, billing_city, billing_region, billing_postal_code, billing_country,
	shipping_line1, shipping_line2, shipping_city, shipping_region, shipping_postal_code, shipping_country,
	address_source, confidence, billing_score, shipping_score, is_manual_override,
	last_transaction_date, created_at`

func (s *Postgres) MailingList(ctx context.Context, filter MailingListFilter) ([]*models.Contact, error) {
	accepted := confidence.AcceptedLevels(filter.MinConfidence)
	levels := make([]string, len(accepted))
	for i, level := range accepted {
		levels[i] = string(level)
	}

	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE confidence = ANY($1)
		  AND ($2::timestamptz IS NULL OR last_transaction_date >= $2)
		ORDER BY
			CASE confidence
				WHEN 'very_high' THEN 1
				WHEN 'high' THEN 2
				WHEN 'medium' THEN 3
				WHEN 'low' THEN 4
				ELSE 5
			END,
			GREATEST(billing_score, shipping_score) DESC,
			id
	`
	var since sql.NullTime
	if filter.Since != nil {
		since = sql.NullTime{Time: *filter.Since, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, pq.Array(levels), since)
	if err != nil {
		return nil, fmt.Errorf("query mailing list: %w", wrapPgError(err))
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mailing list: %w", wrapPgError(err))
	}
	return contacts, nil
}

func (s *Postgres) ListDuplicateSets(ctx context.Context) ([]*models.DuplicateSet, error) {
	// Derived on every read; duplicate grouping is never materialized.
	query := `
		WITH grouped AS (
			SELECT ` + normalizedNameSQL + ` AS normalized_name,
			       array_agg(id::text ORDER BY created_at) AS contact_ids,
			       count(*) AS contact_count,
			       min(created_at) AS earliest_created_at
			FROM contacts
			GROUP BY 1
			HAVING count(*) > 1
		)
		SELECT g.normalized_name, g.contact_ids, g.contact_count, g.earliest_created_at,
		       COALESCE(array_agg(DISTINCT lower(btrim(em.email))) FILTER (WHERE btrim(em.email) <> ''), '{}') AS emails
		FROM grouped g
		JOIN contacts c ON ` + normalizedNameSQL2 + ` = g.normalized_name
		LEFT JOIN LATERAL unnest(c.emails) AS em(email) ON true
		GROUP BY g.normalized_name, g.contact_ids, g.contact_count, g.earliest_created_at
		ORDER BY g.contact_count DESC, g.normalized_name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query duplicate sets: %w", wrapPgError(err))
	}
	defer rows.Close()

	sets := make([]*models.DuplicateSet, 0)
	for rows.Next() {
		var (
			set    models.DuplicateSet
			rawIDs pq.StringArray
			emails pq.StringArray
		)
		if err := rows.Scan(&set.NormalizedName, &rawIDs, &set.ContactCount, &set.EarliestCreatedAt, &emails); err != nil {
			return nil, fmt.Errorf("scan duplicate set: %w", err)
		}
		for _, raw := range rawIDs {
			contactID, err := id.ParseContactID(raw)
			if err != nil {
				return nil, fmt.Errorf("duplicate set %q: %w", set.NormalizedName, err)
			}
			set.ContactIDs = append(set.ContactIDs, contactID)
		}
		set.Emails = emails
		sets = append(sets, &set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate sets: %w", wrapPgError(err))
	}
	return sets, nil
}

func (s *Postgres) Merge(ctx context.Context, survivor id.ContactID, duplicates []id.ContactID) error {
	exec := s.execer(ctx)

	dupIDs := make([]string, len(duplicates))
	for i, dup := range duplicates {
		dupIDs[i] = dup.String()
	}

	var existing int
	err := exec.QueryRowContext(ctx,
		`SELECT count(*) FROM contacts WHERE id = $1 OR id = ANY($2)`,
		survivor.String(), pq.Array(dupIDs),
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("verify merge participants: %w", wrapPgError(err))
	}
	if existing != len(duplicates)+1 {
		return fmt.Errorf("merge participants missing: %w", sentinel.ErrNotFound)
	}

	// Tags are unique per contact: copy the union onto the survivor first,
	// letting ON CONFLICT absorb overlaps, then drop every duplicate row.
	// Updating in place would trip the uniqueness constraint whenever the
	// survivor or two duplicates share a tag.
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO contact_tags (contact_id, tag_id)
		SELECT DISTINCT $1, tag_id FROM contact_tags WHERE contact_id = ANY($2)
		ON CONFLICT (contact_id, tag_id) DO NOTHING
	`, survivor.String(), pq.Array(dupIDs)); err != nil {
		return fmt.Errorf("repoint tags: %w", wrapPgError(err))
	}
	if _, err := exec.ExecContext(ctx,
		`DELETE FROM contact_tags WHERE contact_id = ANY($1)`, pq.Array(dupIDs)); err != nil {
		return fmt.Errorf("drop duplicate tags: %w", wrapPgError(err))
	}

	for _, table := range []string{"subscriptions", "transactions", "contact_products"} {
		if _, err := exec.ExecContext(ctx,
			`UPDATE `+table+` SET contact_id = $1 WHERE contact_id = ANY($2)`,
			survivor.String(), pq.Array(dupIDs)); err != nil {
			return fmt.Errorf("repoint %s: %w", table, wrapPgError(err))
		}
	}

	if _, err := exec.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = ANY($1)`, pq.Array(dupIDs)); err != nil {
		return fmt.Errorf("delete duplicates: %w", wrapPgError(err))
	}
	return nil
}

// normalizedNameSQL2 is normalizedNameSQL against the aliased contacts table
// in the duplicate-set join.
const normalizedNameSQL2 = `lower(regexp_replace(btrim(c.name), '\s+', ' ', 'g'))`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		contact models.Contact
		rawID   string
		emails  pq.StringArray
		lastTxn sql.NullTime
		level   string
		source  string
	)
	err := row.Scan(
		&rawID, &contact.Name, &emails, &contact.SourceSystem,
		&contact.BillingAddress.Line1, &contact.BillingAddress.Line2, &contact.BillingAddress.City,
		&contact.BillingAddress.Region, &contact.BillingAddress.PostalCode, &contact.BillingAddress.Country,
		&contact.ShippingAddress.Line1, &contact.ShippingAddress.Line2, &contact.ShippingAddress.City,
		&contact.ShippingAddress.Region, &contact.ShippingAddress.PostalCode, &contact.ShippingAddress.Country,
		&source, &level, &contact.BillingScore, &contact.ShippingScore, &contact.IsManualOverride,
		&lastTxn, &contact.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	contactID, err := id.ParseContactID(rawID)
	if err != nil {
		return nil, err
	}
	contact.ID = contactID
	contact.Emails = emails
	contact.AddressSource = models.AddressSource(source)
	contact.Confidence = confidence.Level(level)
	if lastTxn.Valid {
		contact.LastTransactionDate = &lastTxn.Time
	}
	return &contact, nil
}

// wrapPgError maps PostgreSQL error classes onto sentinel errors so
// services can branch without importing driver packages.
func wrapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return fmt.Errorf("%s: %w", pgErr.Message, sentinel.ErrConflict)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
	}
	return err
}
