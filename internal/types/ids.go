package types

import (
	"github.com/google/uuid"
)

// NewRecordID generates a UUIDv7 record identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRecordID() RecordID {
	return RecordID(uuid.Must(uuid.NewV7()).String())
}

// ParseRecordID validates and converts a string to RecordID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRecordID(s string) (RecordID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RecordID(s), nil
}
