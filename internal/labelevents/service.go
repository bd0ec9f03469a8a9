package labelevents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labeltrack-backend/pkg/errors"
)

// Service records and reads label events.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.LabelEvent, error)
	RecordMany(ctx context.Context, inputs []RecordInput) ([]models.LabelEvent, error)
	List(ctx context.Context, labelID uuid.UUID, page SeqPage) ([]models.LabelEvent, error)
	Count(ctx context.Context, labelID uuid.UUID) (int64, error)
	HasAssignment(ctx context.Context, labelID uuid.UUID) (bool, error)
	Timeline(ctx context.Context, labelID uuid.UUID) ([]StatePoint, error)
}

// RecordInput captures everything an event needs before it is appended.
type RecordInput struct {
	LabelID     uuid.UUID
	Type        enums.LabelEventType
	Description string
	Location    *string
	From        Snapshot
	To          Snapshot
	ActorUserID uuid.UUID
	DeviceID    string
	PerformedBy string
	At          time.Time
}

type service struct {
	repo Repository
}

// NewService wires an event service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("label event repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.LabelEvent, error) {
	event, err := buildEvent(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append label event")
	}
	return event, nil
}

func (s *service) RecordMany(ctx context.Context, inputs []RecordInput) ([]models.LabelEvent, error) {
	events := make([]models.LabelEvent, 0, len(inputs))
	for _, input := range inputs {
		event, err := buildEvent(input)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := s.repo.AppendMany(ctx, events); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append label events")
	}
	return events, nil
}

func (s *service) List(ctx context.Context, labelID uuid.UUID, page SeqPage) ([]models.LabelEvent, error) {
	if labelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	events, err := s.repo.ListForLabel(ctx, labelID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list label events")
	}
	return events, nil
}

func (s *service) Count(ctx context.Context, labelID uuid.UUID) (int64, error) {
	count, err := s.repo.CountForLabel(ctx, labelID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count label events")
	}
	return count, nil
}

func (s *service) HasAssignment(ctx context.Context, labelID uuid.UUID) (bool, error) {
	ok, err := s.repo.HasAssignment(ctx, labelID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check label assignment history")
	}
	return ok, nil
}

func (s *service) Timeline(ctx context.Context, labelID uuid.UUID) ([]StatePoint, error) {
	if labelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	events, err := s.repo.ListChronological(ctx, labelID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list label events")
	}
	points, err := Replay(events)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay label events")
	}
	return points, nil
}

func buildEvent(input RecordInput) (*models.LabelEvent, error) {
	if input.LabelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid label event type %q", input.Type))
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event description is required")
	}

	from, err := Encode(input.From)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode from snapshot")
	}
	to, err := Encode(input.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode to snapshot")
	}

	event := &models.LabelEvent{
		LabelID:     input.LabelID,
		EventType:   input.Type,
		Description: input.Description,
		Location:    input.Location,
		FromValue:   from,
		ToValue:     to,
		UserID:      input.ActorUserID,
		DeviceID:    optional(input.DeviceID),
		PerformedBy: optional(input.PerformedBy),
	}
	if !input.At.IsZero() {
		event.CreatedAt = input.At.UTC()
	}
	return event, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
