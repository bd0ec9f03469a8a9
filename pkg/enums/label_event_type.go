package enums

import "fmt"

// LabelEventType maps to the label_event_type enum in Postgres.
type LabelEventType string

const (
	LabelEventTypeCreated         LabelEventType = "CREATED"
	LabelEventTypeAssigned        LabelEventType = "ASSIGNED"
	LabelEventTypeLocationChanged LabelEventType = "LOCATION_CHANGED"
	LabelEventTypeScanned         LabelEventType = "SCANNED"
	LabelEventTypeRetired         LabelEventType = "RETIRED"
	LabelEventTypeReprinted       LabelEventType = "REPRINTED"
)

var validLabelEventTypes = []LabelEventType{
	LabelEventTypeCreated,
	LabelEventTypeAssigned,
	LabelEventTypeLocationChanged,
	LabelEventTypeScanned,
	LabelEventTypeRetired,
	LabelEventTypeReprinted,
}

// String implements fmt.Stringer.
func (t LabelEventType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical label event enum.
func (t LabelEventType) IsValid() bool {
	for _, candidate := range validLabelEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsAssignment reports whether the event records a location assignment.
func (t LabelEventType) IsAssignment() bool {
	return t == LabelEventTypeAssigned || t == LabelEventTypeLocationChanged
}

// ParseLabelEventType converts raw input into LabelEventType.
func ParseLabelEventType(value string) (LabelEventType, error) {
	for _, candidate := range validLabelEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid label event type %q", value)
}
