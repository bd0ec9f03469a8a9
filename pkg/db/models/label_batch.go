package models

import (
	"time"

	"github.com/google/uuid"
)

// LabelBatch describes one generate request. Rows are never mutated.
type LabelBatch struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKUID           uuid.UUID `gorm:"column:sku_id;type:uuid;not null" json:"sku_id"`
	Quantity        int       `gorm:"column:quantity;not null" json:"quantity"`
	Notes           *string   `gorm:"column:notes" json:"notes,omitempty"`
	CreatedByUserID uuid.UUID `gorm:"column:created_by_user_id;type:uuid;not null" json:"created_by_user_id"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName pins the table name used by migrations.
func (LabelBatch) TableName() string {
	return "label_batches"
}
