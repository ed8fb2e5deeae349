package entity

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks identifiers generated on the device before the remote side
// assigned a canonical id.
const TempIDPrefix = "tmp-"

// NewTempID returns a time-ordered client-side identifier.
func NewTempID() string {
	return TempIDPrefix + newV7()
}

// IsTempID reports whether id was generated by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NewActionID returns a time-ordered identifier for a pending action.
func NewActionID() string {
	return newV7()
}

func newV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
