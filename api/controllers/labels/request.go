package labels

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/labeltrack-backend/api/validators"
	labelsvc "github.com/angelmondragon/labeltrack-backend/internal/labels"
)

type generateRequest struct {
	SKUID    uuid.UUID `json:"sku_id" validate:"required"`
	Quantity int       `json:"quantity"`
	Notes    string    `json:"notes" validate:"max=500"`
}

type scanRequest struct {
	Code        string `json:"code" validate:"required,max=64"`
	PerformedBy string `json:"performed_by" validate:"max=120"`
}

type assignRequest struct {
	Location    string `json:"location" validate:"required,max=200"`
	PerformedBy string `json:"performed_by" validate:"max=120"`
}

type retireRequest struct {
	Reason      string `json:"reason" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

type reprintRequest struct {
	Reason      string `json:"reason" validate:"required,max=200"`
	Description string `json:"description" validate:"max=500"`
}

func (r generateRequest) toInput(actor actorContext) labelsvc.GenerateInput {
	return labelsvc.GenerateInput{
		SKUID:       r.SKUID,
		Quantity:    r.Quantity,
		Notes:       validators.SanitizeString(r.Notes, 500),
		ActorUserID: actor.userID,
	}
}

func (r scanRequest) toInput(actor actorContext) labelsvc.ScanInput {
	return labelsvc.ScanInput{
		Code:        r.Code,
		ActorUserID: actor.userID,
		DeviceID:    actor.deviceID,
		PerformedBy: validators.SanitizeString(r.PerformedBy, 120),
	}
}

func (r assignRequest) toInput(labelID uuid.UUID, actor actorContext) labelsvc.AssignInput {
	return labelsvc.AssignInput{
		LabelID:     labelID,
		Location:    r.Location,
		ActorUserID: actor.userID,
		DeviceID:    actor.deviceID,
		PerformedBy: validators.SanitizeString(r.PerformedBy, 120),
	}
}

func (r retireRequest) toInput(labelID uuid.UUID, actor actorContext) labelsvc.RetireInput {
	return labelsvc.RetireInput{
		LabelID:     labelID,
		Reason:      r.Reason,
		Description: r.Description,
		ActorUserID: actor.userID,
		DeviceID:    actor.deviceID,
	}
}

func (r reprintRequest) toInput(labelID uuid.UUID, actor actorContext) labelsvc.ReprintInput {
	return labelsvc.ReprintInput{
		LabelID:     labelID,
		Reason:      r.Reason,
		Description: r.Description,
		ActorUserID: actor.userID,
		DeviceID:    actor.deviceID,
	}
}
