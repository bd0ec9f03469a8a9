package labelevents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
)

// Kind tags a snapshot payload stored in from_value / to_value.
type Kind string

const (
	KindCreated           Kind = "created"
	KindReplacementSource Kind = "replacement_source"
	KindLocation          Kind = "location"
	KindScan              Kind = "scan"
	KindRetired           Kind = "retired"
	KindReprint           Kind = "reprint"
	KindSuccessor         Kind = "successor"
)

// Snapshot is one member of the event payload union.
type Snapshot interface {
	Kind() Kind
}

// CreatedSnapshot is the state a label was inserted with.
type CreatedSnapshot struct {
	Code     string            `json:"code"`
	SKUID    uuid.UUID         `json:"sku_id"`
	BatchID  *uuid.UUID        `json:"batch_id,omitempty"`
	Status   enums.LabelStatus `json:"status"`
	Location *string           `json:"location,omitempty"`
}

// ReplacementSource names the label a reprint replaced.
type ReplacementSource struct {
	LabelID uuid.UUID `json:"label_id"`
	Code    string    `json:"code"`
	Reason  string    `json:"reason"`
}

// LocationSnapshot captures status and placement around an assignment.
// InheritedFrom is set when a reprint carried the location over.
type LocationSnapshot struct {
	Status        enums.LabelStatus `json:"status"`
	Location      *string           `json:"location,omitempty"`
	InheritedFrom *uuid.UUID        `json:"inherited_from,omitempty"`
}

// ScanSnapshot records what a scanner observed.
type ScanSnapshot struct {
	Status   enums.LabelStatus `json:"status"`
	Location *string           `json:"location,omitempty"`
	DeviceID *string           `json:"device_id,omitempty"`
	Warning  string            `json:"warning,omitempty"`
}

// RetiredSnapshot is the post-retirement state.
type RetiredSnapshot struct {
	Status    enums.LabelStatus `json:"status"`
	Reason    string            `json:"reason"`
	RetiredAt time.Time         `json:"retired_at"`
	Location  *string           `json:"location,omitempty"`
}

// ReprintSnapshot is the old label before it was reprinted.
type ReprintSnapshot struct {
	Status   enums.LabelStatus `json:"status"`
	Code     string            `json:"code"`
	Location *string           `json:"location,omitempty"`
}

// SuccessorSnapshot points from a reprinted label to its replacement.
type SuccessorSnapshot struct {
	LabelID   uuid.UUID `json:"label_id"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	RetiredAt time.Time `json:"retired_at"`
}

func (CreatedSnapshot) Kind() Kind   { return KindCreated }
func (ReplacementSource) Kind() Kind { return KindReplacementSource }
func (LocationSnapshot) Kind() Kind  { return KindLocation }
func (ScanSnapshot) Kind() Kind      { return KindScan }
func (RetiredSnapshot) Kind() Kind   { return KindRetired }
func (ReprintSnapshot) Kind() Kind   { return KindReprint }
func (SuccessorSnapshot) Kind() Kind { return KindSuccessor }

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type decoder func(json.RawMessage) (Snapshot, error)

var registry = map[Kind]decoder{
	KindCreated:           decodeAs[CreatedSnapshot],
	KindReplacementSource: decodeAs[ReplacementSource],
	KindLocation:          decodeAs[LocationSnapshot],
	KindScan:              decodeAs[ScanSnapshot],
	KindRetired:           decodeAs[RetiredSnapshot],
	KindReprint:           decodeAs[ReprintSnapshot],
	KindSuccessor:         decodeAs[SuccessorSnapshot],
}

func decodeAs[T Snapshot](data json.RawMessage) (Snapshot, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode wraps a snapshot in its kind envelope. A nil snapshot encodes to nil.
func Encode(s Snapshot) (datatypes.JSON, error) {
	if s == nil {
		return nil, nil
	}
	if _, ok := registry[s.Kind()]; !ok {
		return nil, fmt.Errorf("unknown snapshot kind %q", s.Kind())
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal %s snapshot: %w", s.Kind(), err)
	}
	out, err := json.Marshal(envelope{Kind: s.Kind(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", s.Kind(), err)
	}
	return datatypes.JSON(out), nil
}

// Decode resolves a stored payload back to its concrete snapshot type.
// Empty or JSON null payloads decode to nil.
func Decode(raw datatypes.JSON) (Snapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot envelope: %w", err)
	}
	decode, ok := registry[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot kind %q", env.Kind)
	}
	snap, err := decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", env.Kind, err)
	}
	return snap, nil
}
