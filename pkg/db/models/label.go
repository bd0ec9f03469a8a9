package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
)

// Label is one physical QR tag and its current lifecycle state.
type Label struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code              string            `gorm:"column:code;not null;uniqueIndex:ux_labels_code" json:"code"`
	SKUID             uuid.UUID         `gorm:"column:sku_id;type:uuid;not null;index:idx_labels_sku_created,priority:1" json:"sku_id"`
	BatchID           *uuid.UUID        `gorm:"column:batch_id;type:uuid;index:idx_labels_batch" json:"batch_id,omitempty"`
	Status            enums.LabelStatus `gorm:"column:status;type:label_status;not null;index:idx_labels_status_created,priority:1" json:"status"`
	Location          *string           `gorm:"column:location" json:"location,omitempty"`
	AssignedAt        *time.Time        `gorm:"column:assigned_at" json:"assigned_at,omitempty"`
	RetiredAt         *time.Time        `gorm:"column:retired_at" json:"retired_at,omitempty"`
	RetiredReason     *string           `gorm:"column:retired_reason" json:"retired_reason,omitempty"`
	ReplacesLabelID   *uuid.UUID        `gorm:"column:replaces_label_id;type:uuid;uniqueIndex:ux_labels_replaces" json:"replaces_label_id,omitempty"`
	ReplacedByLabelID *uuid.UUID        `gorm:"column:replaced_by_label_id;type:uuid;uniqueIndex:ux_labels_replaced_by" json:"replaced_by_label_id,omitempty"`
	CreatedByUserID   uuid.UUID         `gorm:"column:created_by_user_id;type:uuid;not null" json:"created_by_user_id"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime;index:idx_labels_status_created,priority:2;index:idx_labels_sku_created,priority:2" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name used by migrations.
func (Label) TableName() string {
	return "labels"
}

// IsReplaced reports whether a reprint already produced a successor.
func (l *Label) IsReplaced() bool {
	return l != nil && l.ReplacedByLabelID != nil
}

// CurrentLocation returns the location or an empty string when never assigned.
func (l *Label) CurrentLocation() string {
	if l == nil || l.Location == nil {
		return ""
	}
	return *l.Location
}
