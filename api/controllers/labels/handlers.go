package labels

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/labeltrack-backend/api/middleware"
	"github.com/angelmondragon/labeltrack-backend/api/responses"
	"github.com/angelmondragon/labeltrack-backend/api/validators"
	labelsvc "github.com/angelmondragon/labeltrack-backend/internal/labels"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labeltrack-backend/pkg/errors"
	"github.com/angelmondragon/labeltrack-backend/pkg/logger"
	"github.com/angelmondragon/labeltrack-backend/pkg/pagination"
)

type actorContext struct {
	userID   uuid.UUID
	deviceID string
}

// GenerateBatch creates a batch of fresh labels for a SKU.
func GenerateBatch(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload generateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Generate(r.Context(), payload.toInput(actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetBatch returns a batch and its labels.
func GetBatch(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		batchID, err := validators.ParseUUID(chi.URLParam(r, "batchId"), "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetBatch(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// ListLabels pages through labels newest first with optional filters.
func ListLabels(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ScanLabel records a scan by code. Retired labels still resolve and carry a warning.
func ScanLabel(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload scanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Scan(r.Context(), payload.toInput(actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func GetLabel(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		labelID, err := labelIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		label, err := svc.Get(r.Context(), labelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, label)
	}
}

// AssignLabel places a label at a location. Repeating the current location is a no-op.
func AssignLabel(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		actor, labelID, err := actorAndLabel(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Assign(r.Context(), payload.toInput(labelID, actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func RetireLabel(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		actor, labelID, err := actorAndLabel(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload retireRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		label, err := svc.Retire(r.Context(), payload.toInput(labelID, actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, label)
	}
}

// ReprintLabel retires a label and issues its successor.
func ReprintLabel(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		actor, labelID, err := actorAndLabel(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reprintRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reprint(r.Context(), payload.toInput(labelID, actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// LabelHistory pages through a label's audit trail, newest first.
func LabelHistory(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		labelID, err := labelIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), labelID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

func LabelChain(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		labelID, err := labelIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chain, err := svc.Chain(r.Context(), labelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"labels": chain})
	}
}

func LabelTimeline(svc labelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label service unavailable"))
			return
		}

		labelID, err := labelIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		points, err := svc.Timeline(r.Context(), labelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"states": points})
	}
}

func parseListParams(r *http.Request) (labelsvc.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return labelsvc.ListParams{}, err
	}

	var filter labelsvc.ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseLabelStatus(strings.ToUpper(raw))
		if err != nil {
			return labelsvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").
				WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	if filter.SKUID, err = validators.ParseQueryUUID(r, "sku_id"); err != nil {
		return labelsvc.ListParams{}, err
	}
	if filter.BatchID, err = validators.ParseQueryUUID(r, "batch_id"); err != nil {
		return labelsvc.ListParams{}, err
	}

	return labelsvc.ListParams{
		Filter: filter,
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func actorFromContext(r *http.Request) (actorContext, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return actorContext{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return actorContext{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return actorContext{userID: userID, deviceID: middleware.DeviceIDFromContext(r.Context())}, nil
}

func labelIDParam(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUUID(chi.URLParam(r, "labelId"), "labelId")
}

func actorAndLabel(r *http.Request) (actorContext, uuid.UUID, error) {
	actor, err := actorFromContext(r)
	if err != nil {
		return actorContext{}, uuid.Nil, err
	}
	labelID, err := labelIDParam(r)
	if err != nil {
		return actorContext{}, uuid.Nil, err
	}
	return actor, labelID, nil
}
