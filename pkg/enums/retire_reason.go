package enums

import (
	"fmt"
	"strings"
)

// RetireReason captures why a physical label left service.
type RetireReason string

const (
	RetireReasonEmpty   RetireReason = "EMPTY"
	RetireReasonDamaged RetireReason = "DAMAGED"
	RetireReasonLost    RetireReason = "LOST"
	RetireReasonFaded   RetireReason = "FADED"
	RetireReasonBroken  RetireReason = "BROKEN"
	RetireReasonStolen  RetireReason = "STOLEN"
	RetireReasonOther   RetireReason = "OTHER"
)

var validRetireReasons = []RetireReason{
	RetireReasonEmpty,
	RetireReasonDamaged,
	RetireReasonLost,
	RetireReasonFaded,
	RetireReasonBroken,
	RetireReasonStolen,
	RetireReasonOther,
}

// ReprintedReasonPrefix marks labels retired because a successor was printed.
const ReprintedReasonPrefix = "REPRINTED: "

// String implements fmt.Stringer.
func (r RetireReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RetireReason.
func (r RetireReason) IsValid() bool {
	for _, candidate := range validRetireReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRetireReason converts raw input into a RetireReason. Matching ignores case.
func ParseRetireReason(value string) (RetireReason, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validRetireReasons {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid retire reason %q", value)
}
