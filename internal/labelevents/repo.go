package labelevents

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
)

const appendBatchSize = 100

// SeqPage selects events older than Before, newest first. A zero Limit
// returns every matching event; a zero Before starts from the newest.
type SeqPage struct {
	Limit  int
	Before int64
}

// Repository is the append-only store for label events. It exposes no
// update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.LabelEvent) error
	AppendMany(ctx context.Context, events []models.LabelEvent) error
	ListForLabel(ctx context.Context, labelID uuid.UUID, page SeqPage) ([]models.LabelEvent, error)
	ListChronological(ctx context.Context, labelID uuid.UUID) ([]models.LabelEvent, error)
	CountForLabel(ctx context.Context, labelID uuid.UUID) (int64, error)
	HasAssignment(ctx context.Context, labelID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, event *models.LabelEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) AppendMany(ctx context.Context, events []models.LabelEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&events, appendBatchSize).Error
}

func (r *repository) ListForLabel(ctx context.Context, labelID uuid.UUID, page SeqPage) ([]models.LabelEvent, error) {
	query := r.db.WithContext(ctx).
		Where("label_id = ?", labelID)
	if page.Before > 0 {
		query = query.Where("id < ?", page.Before)
	}
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}

	var events []models.LabelEvent
	if err := query.Order("id DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListChronological(ctx context.Context, labelID uuid.UUID) ([]models.LabelEvent, error) {
	var events []models.LabelEvent
	if err := r.db.WithContext(ctx).
		Where("label_id = ?", labelID).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) CountForLabel(ctx context.Context, labelID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LabelEvent{}).
		Where("label_id = ?", labelID).
		Count(&count).Error
	return count, err
}

func (r *repository) HasAssignment(ctx context.Context, labelID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LabelEvent{}).
		Where("label_id = ? AND event_type IN ?", labelID, []enums.LabelEventType{
			enums.LabelEventTypeAssigned,
			enums.LabelEventTypeLocationChanged,
		}).
		Count(&count).Error
	return count > 0, err
}
