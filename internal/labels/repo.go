package labels

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labeltrack-backend/pkg/db"
	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labeltrack-backend/pkg/errors"
	"github.com/angelmondragon/labeltrack-backend/pkg/pagination"
)

const (
	createBatchSize = 100

	codeConstraintPostgres = "ux_labels_code"
	codeConstraintSQLite   = "labels.code"

	replacesConstraintPostgres = "ux_labels_replaces"
	replacesConstraintSQLite   = "labels.replaces_label_id"
)

// ErrReplacementExists is returned by Create when another label already
// replaces the same predecessor.
var ErrReplacementExists = errors.New("label already has a replacement")

// Patch lists the columns UpdateGuarded writes.
type Patch map[string]any

// Guard is the compare-and-set precondition of a guarded update. The row is
// only touched when its status is one of Statuses and, when MatchLocation is
// set, its location equals Location (nil matches NULL).
type Guard struct {
	Statuses           []enums.LabelStatus
	MatchLocation      bool
	Location           *string
	RequireNotReplaced bool
}

// ListFilter narrows label listings. Nil fields are ignored.
type ListFilter struct {
	Status  *enums.LabelStatus
	SKUID   *uuid.UUID
	BatchID *uuid.UUID
}

type listParams struct {
	Filter ListFilter
	Limit  int
	Cursor *pagination.Cursor
}

// Repository persists labels and batches. It does not judge whether a
// transition is legal; callers express that through Guard.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, label *models.Label) error
	CreateMany(ctx context.Context, labels []models.Label) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Label, error)
	FindByCode(ctx context.Context, code string) (*models.Label, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Label, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateGuarded(ctx context.Context, id uuid.UUID, guard Guard, patch Patch) (bool, error)
	List(ctx context.Context, params listParams) ([]models.Label, *pagination.Cursor, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Label, error)
	CreateBatch(ctx context.Context, batch *models.LabelBatch) error
	FindBatch(ctx context.Context, id uuid.UUID) (*models.LabelBatch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a label repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, label *models.Label) error {
	return mapCreateErr(r.db.WithContext(ctx).Create(label).Error)
}

func (r *repository) CreateMany(ctx context.Context, labels []models.Label) error {
	if len(labels) == 0 {
		return nil
	}
	return mapCreateErr(r.db.WithContext(ctx).CreateInBatches(&labels, createBatchSize).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Label, error) {
	var label models.Label
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&label).Error; err != nil {
		return nil, err
	}
	return &label, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Label, error) {
	var label models.Label
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&label).Error; err != nil {
		return nil, err
	}
	return &label, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Label, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var labels []models.Label
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&labels).Error; err != nil {
		return nil, err
	}
	return labels, nil
}

func (r *repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Label{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateGuarded(ctx context.Context, id uuid.UUID, guard Guard, patch Patch) (bool, error) {
	if len(guard.Statuses) == 0 {
		return false, errors.New("guarded update requires at least one expected status")
	}
	if len(patch) == 0 {
		return false, errors.New("guarded update requires a patch")
	}

	query := r.db.WithContext(ctx).
		Model(&models.Label{}).
		Where("id = ?", id).
		Where("status IN ?", guard.Statuses)
	if guard.MatchLocation {
		if guard.Location == nil {
			query = query.Where("location IS NULL")
		} else {
			query = query.Where("location = ?", *guard.Location)
		}
	}
	if guard.RequireNotReplaced {
		query = query.Where("replaced_by_label_id IS NULL")
	}

	result := query.Updates(map[string]any(patch))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Label, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Label{})
	if params.Filter.Status != nil {
		query = query.Where("status = ?", *params.Filter.Status)
	}
	if params.Filter.SKUID != nil {
		query = query.Where("sku_id = ?", *params.Filter.SKUID)
	}
	if params.Filter.BatchID != nil {
		query = query.Where("batch_id = ?", *params.Filter.BatchID)
	}
	if params.Cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var labels []models.Label
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&labels).Error; err != nil {
		return nil, nil, err
	}

	if len(labels) > limit {
		labels = labels[:limit]
		last := labels[limit-1]
		return labels, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return labels, nil, nil
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Label, error) {
	var labels []models.Label
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC, code ASC").
		Find(&labels).Error; err != nil {
		return nil, err
	}
	return labels, nil
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.LabelBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindBatch(ctx context.Context, id uuid.UUID) (*models.LabelBatch, error) {
	var batch models.LabelBatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func mapCreateErr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, codeConstraintPostgres) || db.IsUniqueViolation(err, codeConstraintSQLite) {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateCode, err, "label code already exists")
	}
	if db.IsUniqueViolation(err, replacesConstraintPostgres) || db.IsUniqueViolation(err, replacesConstraintSQLite) {
		return fmt.Errorf("%w: %w", ErrReplacementExists, err)
	}
	return err
}
