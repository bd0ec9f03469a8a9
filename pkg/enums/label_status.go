package enums

import "fmt"

// LabelStatus maps to the label_status enum in Postgres.
type LabelStatus string

const (
	LabelStatusUnassigned LabelStatus = "UNASSIGNED"
	LabelStatusAssigned   LabelStatus = "ASSIGNED"
	LabelStatusRetired    LabelStatus = "RETIRED"
)

var validLabelStatuses = []LabelStatus{
	LabelStatusUnassigned,
	LabelStatusAssigned,
	LabelStatusRetired,
}

// String implements fmt.Stringer.
func (s LabelStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LabelStatus.
func (s LabelStatus) IsValid() bool {
	for _, candidate := range validLabelStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no lifecycle operation may leave the status.
func (s LabelStatus) IsTerminal() bool {
	return s == LabelStatusRetired
}

// ParseLabelStatus converts raw input into a LabelStatus.
func ParseLabelStatus(value string) (LabelStatus, error) {
	for _, candidate := range validLabelStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid label status %q", value)
}
