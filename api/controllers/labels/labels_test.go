package labels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labeltrack-backend/api/middleware"
	"github.com/angelmondragon/labeltrack-backend/internal/labelevents"
	labelsvc "github.com/angelmondragon/labeltrack-backend/internal/labels"
	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labeltrack-backend/pkg/errors"
	"github.com/angelmondragon/labeltrack-backend/pkg/pagination"
)

type stubLabelService struct {
	err error

	generateInput labelsvc.GenerateInput
	scanInput     labelsvc.ScanInput
	assignInput   labelsvc.AssignInput
	retireInput   labelsvc.RetireInput
	reprintInput  labelsvc.ReprintInput
	historyParams pagination.Params
	listParams    labelsvc.ListParams

	label   *models.Label
	warning *string
}

func (s *stubLabelService) Generate(_ context.Context, input labelsvc.GenerateInput) (*labelsvc.GenerateResult, error) {
	s.generateInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &labelsvc.GenerateResult{Batch: &models.LabelBatch{ID: uuid.New(), Quantity: input.Quantity}}, nil
}

func (s *stubLabelService) Scan(_ context.Context, input labelsvc.ScanInput) (*labelsvc.ScanResult, error) {
	s.scanInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &labelsvc.ScanResult{Label: s.label, Warning: s.warning}, nil
}

func (s *stubLabelService) Assign(_ context.Context, input labelsvc.AssignInput) (*labelsvc.AssignResult, error) {
	s.assignInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &labelsvc.AssignResult{Label: s.label}, nil
}

func (s *stubLabelService) Retire(_ context.Context, input labelsvc.RetireInput) (*models.Label, error) {
	s.retireInput = input
	return s.label, s.err
}

func (s *stubLabelService) Reprint(_ context.Context, input labelsvc.ReprintInput) (*labelsvc.ReprintResult, error) {
	s.reprintInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &labelsvc.ReprintResult{Old: s.label, New: &models.Label{ID: uuid.New()}}, nil
}

func (s *stubLabelService) History(_ context.Context, _ uuid.UUID, params pagination.Params) (*labelsvc.HistoryPage, error) {
	s.historyParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &labelsvc.HistoryPage{Events: []models.LabelEvent{}}, nil
}

func (s *stubLabelService) Get(context.Context, uuid.UUID) (*models.Label, error) {
	return s.label, s.err
}

func (s *stubLabelService) List(_ context.Context, params labelsvc.ListParams) (*labelsvc.ListResult, error) {
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &labelsvc.ListResult{Items: []models.Label{}}, nil
}

func (s *stubLabelService) GetBatch(context.Context, uuid.UUID) (*labelsvc.BatchDetail, error) {
	return nil, s.err
}

func (s *stubLabelService) Chain(context.Context, uuid.UUID) ([]models.Label, error) {
	return nil, s.err
}

func (s *stubLabelService) Timeline(context.Context, uuid.UUID) ([]labelevents.StatePoint, error) {
	return nil, s.err
}

func newRequest(method, target, body string, params map[string]string, actor uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rc := chi.NewRouteContext()
	for key, value := range params {
		rc.URLParams.Add(key, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if actor != uuid.Nil {
		ctx = middleware.WithUserID(ctx, actor.String())
		ctx = middleware.WithDeviceID(ctx, "scanner-9")
	}
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.Error.Code, payload.Error.Details
}

func TestGenerateBatchMapsInput(t *testing.T) {
	svc := &stubLabelService{}
	actor := uuid.New()
	skuID := uuid.New()

	body := `{"sku_id":"` + skuID.String() + `","quantity":12,"notes":"line 4"}`
	resp := httptest.NewRecorder()
	GenerateBatch(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/batches", body, nil, actor))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, skuID, svc.generateInput.SKUID)
	assert.Equal(t, 12, svc.generateInput.Quantity)
	assert.Equal(t, "line 4", svc.generateInput.Notes)
	assert.Equal(t, actor, svc.generateInput.ActorUserID)
}

func TestGenerateBatchRequiresActor(t *testing.T) {
	resp := httptest.NewRecorder()
	GenerateBatch(&stubLabelService{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/batches", `{}`, nil, uuid.Nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestGenerateBatchSurfacesQuantityError(t *testing.T) {
	svc := &stubLabelService{err: pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be between 1 and 500").
		WithDetails(map[string]any{"min": 1, "max": 500, "requested": 0})}

	body := `{"sku_id":"` + uuid.NewString() + `","quantity":0}`
	resp := httptest.NewRecorder()
	GenerateBatch(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/batches", body, nil, uuid.New()))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	code, details := decodeError(t, resp)
	assert.Equal(t, string(pkgerrors.CodeInvalidQuantity), code)
	assert.EqualValues(t, 500, details["max"])
}

func TestScanLabelReturnsWarning(t *testing.T) {
	warning := "This label has been retired"
	svc := &stubLabelService{
		label:   &models.Label{ID: uuid.New(), Code: "BTL-AAAA2222", Status: enums.LabelStatusRetired},
		warning: &warning,
	}

	resp := httptest.NewRecorder()
	ScanLabel(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/scan", `{"code":"btl-aaaa2222"}`, nil, uuid.New()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "scanner-9", svc.scanInput.DeviceID)

	var envelope struct {
		Data struct {
			Warning *string `json:"warning"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Data.Warning)
	assert.Equal(t, warning, *envelope.Data.Warning)
}

func TestAssignLabelRejectsBadID(t *testing.T) {
	resp := httptest.NewRecorder()
	AssignLabel(&stubLabelService{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/x/assign",
		`{"location":"Shelf A"}`, map[string]string{"labelId": "x"}, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAssignLabelRequiresLocation(t *testing.T) {
	labelID := uuid.New()
	resp := httptest.NewRecorder()
	AssignLabel(&stubLabelService{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/"+labelID.String()+"/assign",
		`{"location":""}`, map[string]string{"labelId": labelID.String()}, uuid.New()))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	code, _ := decodeError(t, resp)
	assert.Equal(t, string(pkgerrors.CodeValidation), code)
}

func TestAssignLabelMapsInput(t *testing.T) {
	labelID := uuid.New()
	svc := &stubLabelService{label: &models.Label{ID: labelID}}
	resp := httptest.NewRecorder()
	AssignLabel(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/"+labelID.String()+"/assign",
		`{"location":"Shelf A","performed_by":"Dana"}`, map[string]string{"labelId": labelID.String()}, uuid.New()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, labelID, svc.assignInput.LabelID)
	assert.Equal(t, "Shelf A", svc.assignInput.Location)
	assert.Equal(t, "Dana", svc.assignInput.PerformedBy)
}

func TestRetireLabelConflict(t *testing.T) {
	labelID := uuid.New()
	svc := &stubLabelService{err: pkgerrors.New(pkgerrors.CodeAlreadyRetired, "label already retired")}
	resp := httptest.NewRecorder()
	RetireLabel(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/"+labelID.String()+"/retire",
		`{"reason":"DAMAGED"}`, map[string]string{"labelId": labelID.String()}, uuid.New()))

	require.Equal(t, http.StatusConflict, resp.Code)
	code, _ := decodeError(t, resp)
	assert.Equal(t, string(pkgerrors.CodeAlreadyRetired), code)
	assert.Equal(t, "DAMAGED", svc.retireInput.Reason)
}

func TestReprintLabelAlreadyReplacedCarriesSuccessor(t *testing.T) {
	labelID := uuid.New()
	successor := uuid.New()
	svc := &stubLabelService{err: pkgerrors.New(pkgerrors.CodeAlreadyReplaced, "label already replaced").
		WithDetails(map[string]any{"replaced_by_label_id": successor})}

	resp := httptest.NewRecorder()
	ReprintLabel(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/"+labelID.String()+"/reprint",
		`{"reason":"smudged"}`, map[string]string{"labelId": labelID.String()}, uuid.New()))

	require.Equal(t, http.StatusConflict, resp.Code)
	code, details := decodeError(t, resp)
	assert.Equal(t, string(pkgerrors.CodeAlreadyReplaced), code)
	assert.Equal(t, successor.String(), details["replaced_by_label_id"])
}

func TestReprintLabelCreated(t *testing.T) {
	labelID := uuid.New()
	svc := &stubLabelService{label: &models.Label{ID: labelID}}
	resp := httptest.NewRecorder()
	ReprintLabel(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/labels/"+labelID.String()+"/reprint",
		`{"reason":"smudged","description":"ink ran"}`, map[string]string{"labelId": labelID.String()}, uuid.New()))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "ink ran", svc.reprintInput.Description)
}

func TestLabelHistoryPassesPaging(t *testing.T) {
	labelID := uuid.New()
	svc := &stubLabelService{}
	cursor := pagination.EncodeSeqCursor(42)
	resp := httptest.NewRecorder()
	LabelHistory(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/labels/"+labelID.String()+"/events?limit=10&cursor="+cursor,
		"", map[string]string{"labelId": labelID.String()}, uuid.New()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 10, svc.historyParams.Limit)
	assert.Equal(t, cursor, svc.historyParams.Cursor)
}

func TestLabelHistoryNotFound(t *testing.T) {
	labelID := uuid.New()
	svc := &stubLabelService{err: pkgerrors.New(pkgerrors.CodeNotFound, "label not found")}
	resp := httptest.NewRecorder()
	LabelHistory(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/labels/"+labelID.String()+"/events",
		"", map[string]string{"labelId": labelID.String()}, uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListLabelsParsesFilters(t *testing.T) {
	svc := &stubLabelService{}
	skuID := uuid.New()
	resp := httptest.NewRecorder()
	ListLabels(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/labels?status=assigned&sku_id="+skuID.String()+"&limit=5",
		"", nil, uuid.New()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.listParams.Filter.Status)
	assert.Equal(t, enums.LabelStatusAssigned, *svc.listParams.Filter.Status)
	require.NotNil(t, svc.listParams.Filter.SKUID)
	assert.Equal(t, skuID, *svc.listParams.Filter.SKUID)
	assert.Nil(t, svc.listParams.Filter.BatchID)
	assert.Equal(t, 5, svc.listParams.Limit)
}

func TestListLabelsRejectsUnknownStatus(t *testing.T) {
	resp := httptest.NewRecorder()
	ListLabels(&stubLabelService{}, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/labels?status=lost", "", nil, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
