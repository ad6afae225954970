package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant: IDs must be
// valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseContactID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseContactID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseStaffID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseContactID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ContactID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	contactID := ContactID(uuid.New())
	staffID := StaffID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ ContactID = staffID // compile error
	// var _ StaffID = contactID // compile error

	assert.NotEqual(t, uuid.UUID(contactID), uuid.UUID(staffID))
}

func TestIsNil(t *testing.T) {
	assert.True(t, ContactID{}.IsNil())
	assert.True(t, StaffID{}.IsNil())
	assert.False(t, ContactID(uuid.New()).IsNil())
}

func TestTextRoundTrip(t *testing.T) {
	original := ContactID(uuid.New())

	text, err := original.MarshalText()
	require.NoError(t, err)

	var parsed ContactID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, original, parsed)
}

func TestUnmarshalText_RejectsInvalid(t *testing.T) {
	var parsed StaffID
	err := parsed.UnmarshalText([]byte("not-a-uuid"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
