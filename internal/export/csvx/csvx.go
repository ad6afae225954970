// Package csvx converts contact records into RFC 4180 CSV text for the
// mailing-list export.
package csvx

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"rollcall/internal/contact/models"
)

// Field is one named CSV cell. Rows keep fields in insertion order so the
// header reflects the natural key order of the transform.
type Field struct {
	Key   string
	Value string
}

// Row is an ordered set of fields for one contact.
type Row []Field

// DateLayout renders last transaction dates in export output.
const DateLayout = "2006-01-02"

// TransformRow flattens a contact into CSV fields. Missing optional values
// render as empty strings, never a literal "null". With metadata enabled
// the row additionally carries the scoring detail columns.
func TransformRow(contact *models.Contact, includeMetadata bool) Row {
	address := contact.MailingAddress()

	row := Row{
		{"name", contact.DisplayName()},
		{"email", contact.PrimaryEmail()},
		{"address_line1", address.Line1},
		{"address_line2", address.Line2},
		{"city", address.City},
		{"region", address.Region},
		{"postal_code", address.PostalCode},
		{"country", address.Country},
	}
	if !includeMetadata {
		return row
	}

	lastTransaction := ""
	if contact.LastTransactionDate != nil {
		lastTransaction = contact.LastTransactionDate.Format(DateLayout)
	}

	return append(row,
		Field{"address_source", string(contact.AddressSource)},
		Field{"confidence", string(contact.Confidence)},
		Field{"score", formatScore(contact.MaxScore())},
		Field{"billing_score", formatScore(contact.BillingScore)},
		Field{"shipping_score", formatScore(contact.ShippingScore)},
		Field{"manual_override", yesNo(contact.IsManualOverride)},
		Field{"last_transaction_date", lastTransaction},
	)
}

// Encode serializes rows as RFC 4180 CSV: fields containing commas,
// quotes, or newlines are quoted with embedded quotes doubled, rows are
// joined by \n. An empty input yields an empty string, not a header-only
// file. Rows stream through the writer one at a time.
func Encode(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)

	header := make([]string, len(rows[0]))
	for i, field := range rows[0] {
		header[i] = field.Key
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range rows {
		if len(row) != len(header) {
			return "", fmt.Errorf("row %d has %d fields, header has %d", i, len(row), len(header))
		}
		for j, field := range row {
			record[j] = field.Value
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
