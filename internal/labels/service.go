package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labeltrack-backend/internal/labelcodes"
	"github.com/angelmondragon/labeltrack-backend/internal/labelevents"
	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labeltrack-backend/pkg/errors"
	"github.com/angelmondragon/labeltrack-backend/pkg/logger"
	"github.com/angelmondragon/labeltrack-backend/pkg/metrics"
	"github.com/angelmondragon/labeltrack-backend/pkg/pagination"
)

const (
	opGenerate = "generate"
	opScan     = "scan"
	opAssign   = "assign"
	opRetire   = "retire"
	opReprint  = "reprint"

	defaultMinQuantity      = 1
	defaultMaxQuantity      = 500
	defaultDuplicateRetries = 3
	defaultRetiredWarning   = "This label has been retired"

	maxChainDepth = 1000

	guardedUpdateAttempts = 3
)

// Service runs the label lifecycle. Every state change and its events commit
// in one transaction.
type Service interface {
	Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error)
	Scan(ctx context.Context, input ScanInput) (*ScanResult, error)
	Assign(ctx context.Context, input AssignInput) (*AssignResult, error)
	Retire(ctx context.Context, input RetireInput) (*models.Label, error)
	Reprint(ctx context.Context, input ReprintInput) (*ReprintResult, error)
	History(ctx context.Context, labelID uuid.UUID, params pagination.Params) (*HistoryPage, error)

	Get(ctx context.Context, labelID uuid.UUID) (*models.Label, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchDetail, error)
	Chain(ctx context.Context, labelID uuid.UUID) ([]models.Label, error)
	Timeline(ctx context.Context, labelID uuid.UUID) ([]labelevents.StatePoint, error)
}

// ServiceParams bundles the dependencies of the lifecycle engine.
type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Events    labelevents.Service
	Codes     CodeGenerator
	Catalog   SKUCatalog
	Locations LocationPolicy
	Metrics   Metrics
	Logger    *logger.Logger
	Clock     Clock

	MinQuantity      int
	MaxQuantity      int
	DuplicateRetries int
	RetiredWarning   string
}

type service struct {
	tx        txRunner
	repo      Repository
	events    labelevents.Service
	codes     CodeGenerator
	catalog   SKUCatalog
	locations LocationPolicy
	metrics   Metrics
	logg      *logger.Logger
	clock     Clock

	minQuantity      int
	maxQuantity      int
	duplicateRetries int
	retiredWarning   string
}

// GenerateInput requests a batch of fresh labels for one SKU.
type GenerateInput struct {
	SKUID       uuid.UUID
	Quantity    int
	Notes       string
	ActorUserID uuid.UUID
}

// GenerateResult is the persisted batch and its labels.
type GenerateResult struct {
	Batch  *models.LabelBatch `json:"batch"`
	Labels []models.Label     `json:"labels"`
}

// ScanInput identifies a scanned code and who scanned it.
type ScanInput struct {
	Code        string
	ActorUserID uuid.UUID
	DeviceID    string
	PerformedBy string
}

// ScanResult carries the label, its SKU context and an optional warning.
type ScanResult struct {
	Label   *models.Label `json:"label"`
	SKU     *SKU          `json:"sku"`
	Warning *string       `json:"warning"`
}

// AssignInput places a label at a location.
type AssignInput struct {
	LabelID     uuid.UUID
	Location    string
	ActorUserID uuid.UUID
	DeviceID    string
	PerformedBy string
}

// AssignResult reports the label and whether the call changed nothing.
type AssignResult struct {
	Label      *models.Label `json:"label"`
	Idempotent bool          `json:"idempotent"`
}

// RetireInput takes a label out of service.
type RetireInput struct {
	LabelID     uuid.UUID
	Reason      string
	Description string
	ActorUserID uuid.UUID
	DeviceID    string
}

// ReprintInput replaces a label with a freshly coded successor.
type ReprintInput struct {
	LabelID     uuid.UUID
	Reason      string
	Description string
	ActorUserID uuid.UUID
	DeviceID    string
}

// ReprintResult holds the retired original and its successor.
type ReprintResult struct {
	Old *models.Label `json:"old"`
	New *models.Label `json:"new"`
}

// HistoryPage is one page of events, newest first.
type HistoryPage struct {
	Events []models.LabelEvent `json:"events"`
	Cursor string              `json:"cursor"`
}

// ListParams filters and pages label listings.
type ListParams struct {
	Filter ListFilter
	Limit  int
	Cursor string
}

// ListResult wraps returned labels and the cursor for the next page.
type ListResult struct {
	Items  []models.Label `json:"items"`
	Cursor string         `json:"cursor"`
}

// BatchDetail is a batch with every label it produced.
type BatchDetail struct {
	Batch  *models.LabelBatch `json:"batch"`
	Labels []models.Label     `json:"labels"`
}

// NewService wires the lifecycle engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("label repository required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("label event service required")
	}
	if params.Codes == nil {
		return nil, fmt.Errorf("code generator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	svc := &service{
		tx:               params.Tx,
		repo:             params.Repo,
		events:           params.Events,
		codes:            params.Codes,
		catalog:          params.Catalog,
		locations:        params.Locations,
		metrics:          params.Metrics,
		logg:             params.Logger,
		clock:            params.Clock,
		minQuantity:      params.MinQuantity,
		maxQuantity:      params.MaxQuantity,
		duplicateRetries: params.DuplicateRetries,
		retiredWarning:   strings.TrimSpace(params.RetiredWarning),
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.metrics == nil {
		svc.metrics = (*metrics.LifecycleMetrics)(nil)
	}
	if svc.minQuantity <= 0 {
		svc.minQuantity = defaultMinQuantity
	}
	if svc.maxQuantity <= 0 {
		svc.maxQuantity = defaultMaxQuantity
	}
	if svc.maxQuantity < svc.minQuantity {
		return nil, fmt.Errorf("max quantity %d below min quantity %d", svc.maxQuantity, svc.minQuantity)
	}
	if svc.duplicateRetries <= 0 {
		svc.duplicateRetries = defaultDuplicateRetries
	}
	if svc.retiredWarning == "" {
		svc.retiredWarning = defaultRetiredWarning
	}
	return svc, nil
}

func (s *service) Generate(ctx context.Context, input GenerateInput) (result *GenerateResult, err error) {
	defer s.observe(opGenerate, s.clock(), &err)

	if input.SKUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	if input.Quantity < s.minQuantity || input.Quantity > s.maxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity,
			fmt.Sprintf("quantity must be between %d and %d", s.minQuantity, s.maxQuantity)).
			WithDetails(map[string]int{"min": s.minQuantity, "max": s.maxQuantity, "requested": input.Quantity})
	}
	notes := optionalString(input.Notes)

	err = s.retryOnDuplicate(ctx, opGenerate, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			events := s.events.WithTx(tx)
			now := s.now()

			batch := &models.LabelBatch{
				ID:              uuid.New(),
				SKUID:           input.SKUID,
				Quantity:        input.Quantity,
				Notes:           notes,
				CreatedByUserID: input.ActorUserID,
				CreatedAt:       now,
			}
			if err := repo.CreateBatch(ctx, batch); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create label batch")
			}

			codes, err := s.codes.NewBatchCodes(ctx, input.Quantity, repo.CodeExists)
			if err != nil {
				return codeGenerationError(err)
			}

			created := make([]models.Label, 0, len(codes))
			records := make([]labelevents.RecordInput, 0, len(codes))
			for _, code := range codes {
				label := models.Label{
					ID:              uuid.New(),
					Code:            code,
					SKUID:           input.SKUID,
					BatchID:         &batch.ID,
					Status:          enums.LabelStatusUnassigned,
					CreatedByUserID: input.ActorUserID,
					CreatedAt:       now,
					UpdatedAt:       now,
				}
				created = append(created, label)
				records = append(records, labelevents.RecordInput{
					LabelID:     label.ID,
					Type:        enums.LabelEventTypeCreated,
					Description: fmt.Sprintf("Label %s created", code),
					To: labelevents.CreatedSnapshot{
						Code:    code,
						SKUID:   label.SKUID,
						BatchID: label.BatchID,
						Status:  label.Status,
					},
					ActorUserID: input.ActorUserID,
					At:          now,
				})
			}

			if err := repo.CreateMany(ctx, created); err != nil {
				return storeError(err, "create labels")
			}
			if _, err := events.RecordMany(ctx, records); err != nil {
				return err
			}

			result = &GenerateResult{Batch: batch, Labels: created}
			return nil
		})
	})
	if err != nil {
		return nil, dependencyError(err, "generate labels")
	}

	s.metrics.AddLabelsGenerated(len(result.Labels))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"batch_id": result.Batch.ID.String(),
		"sku_id":   input.SKUID.String(),
		"quantity": input.Quantity,
	})
	s.logg.Info(logCtx, "label batch generated")
	return result, nil
}

func (s *service) Scan(ctx context.Context, input ScanInput) (result *ScanResult, err error) {
	defer s.observe(opScan, s.clock(), &err)

	code := labelcodes.Normalize(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}

	var label *models.Label
	var warning *string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		found, err := s.repo.WithTx(tx).FindByCode(ctx, code)
		if err != nil {
			return lookupError(err, "label not found")
		}

		snapshot := labelevents.ScanSnapshot{
			Status:   found.Status,
			Location: found.Location,
			DeviceID: optionalString(input.DeviceID),
		}
		if found.Status == enums.LabelStatusRetired {
			w := s.retiredWarning
			warning = &w
			snapshot.Warning = w
		}

		if _, err := s.events.WithTx(tx).Record(ctx, labelevents.RecordInput{
			LabelID:     found.ID,
			Type:        enums.LabelEventTypeScanned,
			Description: fmt.Sprintf("Label %s scanned", found.Code),
			Location:    found.Location,
			To:          snapshot,
			ActorUserID: input.ActorUserID,
			DeviceID:    input.DeviceID,
			PerformedBy: input.PerformedBy,
			At:          s.now(),
		}); err != nil {
			return err
		}
		label = found
		return nil
	})
	if err != nil {
		return nil, dependencyError(err, "scan label")
	}

	return &ScanResult{
		Label:   label,
		SKU:     s.lookupSKU(ctx, label.SKUID),
		Warning: warning,
	}, nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (result *AssignResult, err error) {
	defer s.observe(opAssign, s.clock(), &err)

	location := strings.TrimSpace(input.Location)
	if input.LabelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	if location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	}
	if s.locations != nil {
		if err := s.locations.Check(location); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "location not allowed")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		events := s.events.WithTx(tx)

		label, err := repo.FindByID(ctx, input.LabelID)
		if err != nil {
			return lookupError(err, "label not found")
		}
		if label.Status == enums.LabelStatusRetired {
			return labelRetiredError(label)
		}
		if label.Status == enums.LabelStatusAssigned && label.CurrentLocation() == location {
			result = &AssignResult{Label: label, Idempotent: true}
			return nil
		}

		assignedBefore, err := events.HasAssignment(ctx, label.ID)
		if err != nil {
			return err
		}
		eventType := enums.LabelEventTypeAssigned
		description := fmt.Sprintf("Assigned to %s", location)
		if assignedBefore {
			eventType = enums.LabelEventTypeLocationChanged
			description = fmt.Sprintf("Moved from %s to %s", displayLocation(label.Location), location)
		}

		now := s.now()
		ok, err := repo.UpdateGuarded(ctx, label.ID, Guard{
			Statuses:      []enums.LabelStatus{label.Status},
			MatchLocation: true,
			Location:      label.Location,
		}, Patch{
			"status":      enums.LabelStatusAssigned,
			"location":    location,
			"assigned_at": now,
			"updated_at":  now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update label")
		}
		if !ok {
			return s.lostUpdate(ctx, repo, label.ID, opAssign)
		}

		if _, err := events.Record(ctx, labelevents.RecordInput{
			LabelID:     label.ID,
			Type:        eventType,
			Description: description,
			Location:    &location,
			From:        labelevents.LocationSnapshot{Status: label.Status, Location: label.Location},
			To:          labelevents.LocationSnapshot{Status: enums.LabelStatusAssigned, Location: &location},
			ActorUserID: input.ActorUserID,
			DeviceID:    input.DeviceID,
			PerformedBy: input.PerformedBy,
			At:          now,
		}); err != nil {
			return err
		}

		label.Status = enums.LabelStatusAssigned
		label.Location = &location
		label.AssignedAt = &now
		label.UpdatedAt = now
		result = &AssignResult{Label: label}
		return nil
	})
	if err != nil {
		return nil, dependencyError(err, "assign label")
	}
	return result, nil
}

func (s *service) Retire(ctx context.Context, input RetireInput) (retired *models.Label, err error) {
	defer s.observe(opRetire, s.clock(), &err)

	if input.LabelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	reason, err := enums.ParseRetireReason(input.Reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid retire reason")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		label, err := repo.FindByID(ctx, input.LabelID)
		if err != nil {
			return lookupError(err, "label not found")
		}
		if label.Status == enums.LabelStatusRetired {
			return alreadyRetiredError(label)
		}

		now := s.now()
		reasonText := reason.String()
		patch := Patch{
			"status":         enums.LabelStatusRetired,
			"retired_at":     now,
			"retired_reason": reasonText,
			"updated_at":     now,
		}
		// Retiring is legal from any live state. A missed guard re-reads the
		// row so the From snapshot is always the state actually replaced.
		err = labelcodes.Retry(ctx, guardedUpdateAttempts, func(ctx context.Context, attempt int) (bool, error) {
			if attempt > 1 {
				fresh, err := repo.FindByID(ctx, label.ID)
				if err != nil {
					return false, lookupError(err, "label not found")
				}
				label = fresh
			}
			if label.Status == enums.LabelStatusRetired {
				return false, alreadyRetiredError(label)
			}
			ok, err := repo.UpdateGuarded(ctx, label.ID, Guard{
				Statuses:      []enums.LabelStatus{label.Status},
				MatchLocation: true,
				Location:      label.Location,
			}, patch)
			if err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update label")
			}
			return ok, nil
		})
		if errors.Is(err, labelcodes.ErrAttemptsExhausted) {
			return s.lostUpdate(ctx, repo, label.ID, opRetire)
		}
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Retired (%s)", reasonText)
		if extra := strings.TrimSpace(input.Description); extra != "" {
			description = fmt.Sprintf("%s: %s", description, extra)
		}
		if _, err := s.events.WithTx(tx).Record(ctx, labelevents.RecordInput{
			LabelID:     label.ID,
			Type:        enums.LabelEventTypeRetired,
			Description: description,
			Location:    label.Location,
			From:        labelevents.LocationSnapshot{Status: label.Status, Location: label.Location},
			To: labelevents.RetiredSnapshot{
				Status:    enums.LabelStatusRetired,
				Reason:    reasonText,
				RetiredAt: now,
				Location:  label.Location,
			},
			ActorUserID: input.ActorUserID,
			DeviceID:    input.DeviceID,
			At:          now,
		}); err != nil {
			return err
		}

		label.Status = enums.LabelStatusRetired
		label.RetiredAt = &now
		label.RetiredReason = &reasonText
		label.UpdatedAt = now
		retired = label
		return nil
	})
	if err != nil {
		return nil, dependencyError(err, "retire label")
	}
	return retired, nil
}

func (s *service) Reprint(ctx context.Context, input ReprintInput) (result *ReprintResult, err error) {
	defer s.observe(opReprint, s.clock(), &err)

	if input.LabelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	reason, err := enums.ParseRetireReason(input.Reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reprint reason")
	}

	err = s.retryOnDuplicate(ctx, opReprint, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			old, err := repo.FindByID(ctx, input.LabelID)
			if err != nil {
				return lookupError(err, "label not found")
			}
			if old.IsReplaced() {
				return alreadyReplacedError(old)
			}
			if old.Status == enums.LabelStatusRetired {
				return alreadyRetiredError(old)
			}

			code, err := s.codes.NewUniqueCode(ctx, repo.CodeExists)
			if err != nil {
				return codeGenerationError(err)
			}

			now := s.now()
			inherit := old.Status == enums.LabelStatusAssigned
			successor := &models.Label{
				ID:              uuid.New(),
				Code:            code,
				SKUID:           old.SKUID,
				BatchID:         old.BatchID,
				Status:          enums.LabelStatusUnassigned,
				ReplacesLabelID: &old.ID,
				CreatedByUserID: input.ActorUserID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if inherit {
				location := old.CurrentLocation()
				successor.Status = enums.LabelStatusAssigned
				successor.Location = &location
				successor.AssignedAt = &now
			}
			if err := repo.Create(ctx, successor); err != nil {
				if errors.Is(err, ErrReplacementExists) {
					return err
				}
				return storeError(err, "create replacement label")
			}

			retiredReason := enums.ReprintedReasonPrefix + reason.String()
			ok, err := repo.UpdateGuarded(ctx, old.ID, Guard{
				Statuses:           []enums.LabelStatus{old.Status},
				RequireNotReplaced: true,
			}, Patch{
				"status":               enums.LabelStatusRetired,
				"retired_at":           now,
				"retired_reason":       retiredReason,
				"replaced_by_label_id": successor.ID,
				"updated_at":           now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire reprinted label")
			}
			if !ok {
				return s.lostUpdate(ctx, repo, old.ID, opReprint)
			}

			note := ""
			if extra := strings.TrimSpace(input.Description); extra != "" {
				note = ": " + extra
			}
			records := []labelevents.RecordInput{
				{
					LabelID:     old.ID,
					Type:        enums.LabelEventTypeReprinted,
					Description: fmt.Sprintf("Reprinted as %s (%s)%s", successor.Code, reason, note),
					Location:    old.Location,
					From:        labelevents.ReprintSnapshot{Status: old.Status, Code: old.Code, Location: old.Location},
					To: labelevents.SuccessorSnapshot{
						LabelID:   successor.ID,
						Code:      successor.Code,
						Reason:    retiredReason,
						RetiredAt: now,
					},
					ActorUserID: input.ActorUserID,
					DeviceID:    input.DeviceID,
					At:          now,
				},
				{
					LabelID:     successor.ID,
					Type:        enums.LabelEventTypeCreated,
					Description: fmt.Sprintf("Label %s created to replace %s (%s)", successor.Code, old.Code, reason),
					From:        labelevents.ReplacementSource{LabelID: old.ID, Code: old.Code, Reason: reason.String()},
					To: labelevents.CreatedSnapshot{
						Code:     successor.Code,
						SKUID:    successor.SKUID,
						BatchID:  successor.BatchID,
						Status:   successor.Status,
						Location: successor.Location,
					},
					ActorUserID: input.ActorUserID,
					DeviceID:    input.DeviceID,
					At:          now,
				},
			}
			if inherit {
				records = append(records, labelevents.RecordInput{
					LabelID:     successor.ID,
					Type:        enums.LabelEventTypeAssigned,
					Description: fmt.Sprintf("Inherited location %s from %s", *successor.Location, old.Code),
					Location:    successor.Location,
					To: labelevents.LocationSnapshot{
						Status:        enums.LabelStatusAssigned,
						Location:      successor.Location,
						InheritedFrom: &old.ID,
					},
					ActorUserID: input.ActorUserID,
					DeviceID:    input.DeviceID,
					At:          now,
				})
			}
			if _, err := s.events.WithTx(tx).RecordMany(ctx, records); err != nil {
				return err
			}

			old.Status = enums.LabelStatusRetired
			old.RetiredAt = &now
			old.RetiredReason = &retiredReason
			old.ReplacedByLabelID = &successor.ID
			old.UpdatedAt = now
			result = &ReprintResult{Old: old, New: successor}
			return nil
		})
	})
	if errors.Is(err, ErrReplacementExists) {
		err = s.replacedConcurrently(ctx, input.LabelID)
	}
	if err != nil {
		return nil, dependencyError(err, "reprint label")
	}

	s.metrics.AddLabelsGenerated(1)
	logCtx := s.logg.WithLabelID(ctx, result.Old.ID.String())
	logCtx = s.logg.WithField(logCtx, "replacement_label_id", result.New.ID.String())
	s.logg.Info(logCtx, "label reprinted")
	return result, nil
}

func (s *service) History(ctx context.Context, labelID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if _, err := s.Get(ctx, labelID); err != nil {
		return nil, err
	}
	before, err := pagination.ParseSeqCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	events, err := s.events.List(ctx, labelID, labelevents.SeqPage{
		Limit:  limit + 1,
		Before: before,
	})
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.Cursor = pagination.EncodeSeqCursor(page.Events[limit-1].ID)
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, labelID uuid.UUID) (*models.Label, error) {
	if labelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label id is required")
	}
	label, err := s.repo.FindByID(ctx, labelID)
	if err != nil {
		return nil, lookupError(err, "label not found")
	}
	return label, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Filter.Status != nil && !params.Filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *params.Filter.Status))
	}
	query := listParams{Filter: params.Filter, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list labels")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchDetail, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id is required")
	}
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return nil, lookupError(err, "batch not found")
	}
	labels, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batch labels")
	}
	return &BatchDetail{Batch: batch, Labels: labels}, nil
}

// Chain returns every label in the reprint chain of labelID, oldest first.
func (s *service) Chain(ctx context.Context, labelID uuid.UUID) ([]models.Label, error) {
	start, err := s.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{start.ID: {}}
	step := func(next *uuid.UUID) (*models.Label, error) {
		if next == nil {
			return nil, nil
		}
		if _, dup := seen[*next]; dup || len(seen) >= maxChainDepth {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reprint chain is not a simple list").
				WithDetails(map[string]string{"label_id": next.String()})
		}
		seen[*next] = struct{}{}
		label, err := s.repo.FindByID(ctx, *next)
		if err != nil {
			return nil, lookupError(err, "chained label missing")
		}
		return label, nil
	}

	var older []models.Label
	for cur := start; ; {
		prev, err := step(cur.ReplacesLabelID)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			break
		}
		older = append(older, *prev)
		cur = prev
	}

	chain := make([]models.Label, 0, len(older)+1)
	for i := len(older) - 1; i >= 0; i-- {
		chain = append(chain, older[i])
	}
	chain = append(chain, *start)

	for cur := start; ; {
		next, err := step(cur.ReplacedByLabelID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		chain = append(chain, *next)
		cur = next
	}
	return chain, nil
}

func (s *service) Timeline(ctx context.Context, labelID uuid.UUID) ([]labelevents.StatePoint, error) {
	if _, err := s.Get(ctx, labelID); err != nil {
		return nil, err
	}
	return s.events.Timeline(ctx, labelID)
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// retryOnDuplicate reruns fn when a concurrent writer claimed a code between
// the uniqueness check and the insert.
func (s *service) retryOnDuplicate(ctx context.Context, op string, fn func() error) error {
	var lastDuplicate error
	err := labelcodes.Retry(ctx, s.duplicateRetries, func(ctx context.Context, attempt int) (bool, error) {
		err := fn()
		if err == nil {
			return true, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeDuplicateCode) {
			return false, err
		}
		lastDuplicate = err
		logCtx := s.logg.WithFields(ctx, map[string]any{"operation": op, "attempt": attempt})
		s.logg.Warn(logCtx, "label code claimed concurrently, retrying")
		return false, nil
	})
	if errors.Is(err, labelcodes.ErrAttemptsExhausted) && lastDuplicate != nil {
		return lastDuplicate
	}
	return err
}

func (s *service) lostUpdate(ctx context.Context, repo Repository, labelID uuid.UUID, op string) error {
	s.logg.Warn(s.logg.WithLabelID(s.logg.WithField(ctx, "operation", op), labelID.String()), "label update lost compare-and-set")

	current, err := repo.FindByID(ctx, labelID)
	if err != nil {
		return lookupError(err, "label not found")
	}
	switch {
	case op == opAssign && current.Status == enums.LabelStatusRetired:
		return labelRetiredError(current)
	case op == opReprint && current.IsReplaced():
		return alreadyReplacedError(current)
	case current.Status == enums.LabelStatusRetired:
		return alreadyRetiredError(current)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "label changed concurrently, retry the operation").
		WithDetails(map[string]string{"label_id": labelID.String(), "status": current.Status.String()})
}

// replacedConcurrently reports a reprint whose successor insert hit the unique
// index on replaces_label_id. The label is re-read outside the rolled back
// transaction for error details.
func (s *service) replacedConcurrently(ctx context.Context, labelID uuid.UUID) error {
	s.logg.Warn(s.logg.WithLabelID(s.logg.WithField(ctx, "operation", opReprint), labelID.String()), "replacement label created concurrently")

	current, err := s.repo.FindByID(ctx, labelID)
	if err != nil || !current.IsReplaced() {
		return alreadyReplacedError(&models.Label{ID: labelID})
	}
	return alreadyReplacedError(current)
}

func (s *service) lookupSKU(ctx context.Context, skuID uuid.UUID) *SKU {
	fallback := &SKU{ID: skuID}
	if s.catalog == nil {
		return fallback
	}
	sku, err := s.catalog.LookupSKU(ctx, skuID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "sku_id", skuID.String()), "sku lookup failed: "+err.Error())
		return fallback
	}
	if sku == nil {
		return fallback
	}
	return sku
}

func (s *service) observe(op string, started time.Time, errp *error) {
	outcome := metrics.OutcomeSuccess
	if errp != nil && *errp != nil {
		outcome = metrics.OutcomeError
		if typed := pkgerrors.As(*errp); typed != nil && typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal {
			outcome = metrics.OutcomeRejected
		}
	}
	s.metrics.ObserveOperation(op, outcome, s.clock().Sub(started))
}

func alreadyRetiredError(label *models.Label) error {
	details := map[string]any{"label_id": label.ID}
	if label.RetiredAt != nil {
		details["retired_at"] = label.RetiredAt
	}
	if label.RetiredReason != nil {
		details["retired_reason"] = *label.RetiredReason
	}
	return pkgerrors.New(pkgerrors.CodeAlreadyRetired, "label is already retired").WithDetails(details)
}

func alreadyReplacedError(label *models.Label) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyReplaced, "label was already reprinted; reprint its replacement instead").
		WithDetails(map[string]any{"label_id": label.ID, "replaced_by_label_id": label.ReplacedByLabelID})
}

func labelRetiredError(label *models.Label) error {
	return pkgerrors.New(pkgerrors.CodeLabelRetired, "retired labels cannot be assigned").
		WithDetails(map[string]any{"label_id": label.ID})
}

func lookupError(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load label")
}

func codeGenerationError(err error) error {
	if errors.Is(err, labelcodes.ErrCodeSpaceExhausted) {
		return pkgerrors.Wrap(pkgerrors.CodeCodeSpaceExhausted, err, "could not allocate a unique label code")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate label code")
}

func storeError(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

// dependencyError leaves coded errors intact and classifies the rest as
// storage failures.
func dependencyError(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func displayLocation(location *string) string {
	if location == nil || *location == "" {
		return "(none)"
	}
	return *location
}
