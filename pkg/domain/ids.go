// Package domain defines typed identifiers shared across modules.
//
// Each ID is a distinct named type over uuid.UUID so the compiler rejects
// cross-assignment (a ContactID can never be passed where a StaffID is
// expected). Parse functions enforce the trust-boundary invariant that IDs
// are valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

// ContactID identifies a contact record.
type ContactID uuid.UUID

// StaffID identifies a staff operator.
type StaffID uuid.UUID

func (id ContactID) String() string { return uuid.UUID(id).String() }
func (id StaffID) String() string   { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id ContactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IsNil reports whether the ID is the zero UUID.
func (id StaffID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID in canonical UUID form for JSON payloads.
func (id ContactID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// MarshalText renders the ID in canonical UUID form for JSON payloads.
func (id StaffID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText parses the ID with the same validation as ParseContactID.
func (id *ContactID) UnmarshalText(raw []byte) error {
	parsed, err := ParseContactID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnmarshalText parses the ID with the same validation as ParseStaffID.
func (id *StaffID) UnmarshalText(raw []byte) error {
	parsed, err := ParseStaffID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseContactID parses and validates a contact ID from its string form.
func ParseContactID(raw string) (ContactID, error) {
	parsed, err := parseUUID(raw, "contact id")
	if err != nil {
		return ContactID{}, err
	}
	return ContactID(parsed), nil
}

// ParseStaffID parses and validates a staff ID from its string form.
func ParseStaffID(raw string) (StaffID, error) {
	parsed, err := parseUUID(raw, "staff id")
	if err != nil {
		return StaffID{}, err
	}
	return StaffID(parsed), nil
}

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return parsed, nil
}
