package labelevents

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
)

// StatePoint is the reconstructed label state right after one event.
type StatePoint struct {
	EventID           int64                `json:"event_id"`
	EventType         enums.LabelEventType `json:"event_type"`
	At                time.Time            `json:"at"`
	Status            enums.LabelStatus    `json:"status"`
	Location          *string              `json:"location,omitempty"`
	AssignedAt        *time.Time           `json:"assigned_at,omitempty"`
	RetiredAt         *time.Time           `json:"retired_at,omitempty"`
	RetiredReason     *string              `json:"retired_reason,omitempty"`
	ReplacesLabelID   *uuid.UUID           `json:"replaces_label_id,omitempty"`
	ReplacedByLabelID *uuid.UUID           `json:"replaced_by_label_id,omitempty"`
}

// Replay folds events in append order into a state per event. Scans repeat
// the previous state.
func Replay(events []models.LabelEvent) ([]StatePoint, error) {
	points := make([]StatePoint, 0, len(events))
	var state StatePoint
	for i, event := range events {
		if i > 0 && event.ID <= events[i-1].ID {
			return nil, fmt.Errorf("events out of order at id %d", event.ID)
		}
		from, err := Decode(event.FromValue)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", event.ID, err)
		}
		to, err := Decode(event.ToValue)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", event.ID, err)
		}
		if i == 0 && event.EventType != enums.LabelEventTypeCreated {
			return nil, fmt.Errorf("event %d: history must start with %s", event.ID, enums.LabelEventTypeCreated)
		}

		switch event.EventType {
		case enums.LabelEventTypeCreated:
			created, ok := to.(CreatedSnapshot)
			if !ok {
				return nil, fmt.Errorf("event %d: expected created snapshot", event.ID)
			}
			state.Status = created.Status
			state.Location = created.Location
			if src, ok := from.(ReplacementSource); ok {
				id := src.LabelID
				state.ReplacesLabelID = &id
			}
		case enums.LabelEventTypeAssigned, enums.LabelEventTypeLocationChanged:
			loc, ok := to.(LocationSnapshot)
			if !ok {
				return nil, fmt.Errorf("event %d: expected location snapshot", event.ID)
			}
			at := event.CreatedAt
			state.Status = loc.Status
			state.Location = loc.Location
			state.AssignedAt = &at
		case enums.LabelEventTypeScanned:
		case enums.LabelEventTypeRetired:
			retired, ok := to.(RetiredSnapshot)
			if !ok {
				return nil, fmt.Errorf("event %d: expected retired snapshot", event.ID)
			}
			reason, at := retired.Reason, retired.RetiredAt
			state.Status = enums.LabelStatusRetired
			state.RetiredReason = &reason
			state.RetiredAt = &at
		case enums.LabelEventTypeReprinted:
			successor, ok := to.(SuccessorSnapshot)
			if !ok {
				return nil, fmt.Errorf("event %d: expected successor snapshot", event.ID)
			}
			reason, at := successor.Reason, successor.RetiredAt
			id := successor.LabelID
			state.Status = enums.LabelStatusRetired
			state.RetiredReason = &reason
			state.RetiredAt = &at
			state.ReplacedByLabelID = &id
		default:
			return nil, fmt.Errorf("event %d: unknown event type %q", event.ID, event.EventType)
		}

		state.EventID = event.ID
		state.EventType = event.EventType
		state.At = event.CreatedAt
		points = append(points, state)
	}
	return points, nil
}
