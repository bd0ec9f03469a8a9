package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
)

// LabelEvent is an immutable audit record of a label transition or scan.
// ID is the append sequence and breaks created_at ties within one transaction.
type LabelEvent struct {
	ID          int64                `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LabelID     uuid.UUID            `gorm:"column:label_id;type:uuid;not null;index:idx_label_events_label_id,priority:1" json:"label_id"`
	EventType   enums.LabelEventType `gorm:"column:event_type;type:label_event_type;not null" json:"event_type"`
	Description string               `gorm:"column:description;not null" json:"description"`
	Location    *string              `gorm:"column:location" json:"location,omitempty"`
	FromValue   datatypes.JSON       `gorm:"column:from_value" json:"from_value,omitempty"`
	ToValue     datatypes.JSON       `gorm:"column:to_value" json:"to_value,omitempty"`
	UserID      uuid.UUID            `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	DeviceID    *string              `gorm:"column:device_id" json:"device_id,omitempty"`
	PerformedBy *string              `gorm:"column:performed_by" json:"performed_by,omitempty"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName pins the table name used by migrations.
func (LabelEvent) TableName() string {
	return "label_events"
}
