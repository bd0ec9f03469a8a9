package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/labeltrack-backend/internal/labels"
	pkgAuth "github.com/angelmondragon/labeltrack-backend/pkg/auth"
	"github.com/angelmondragon/labeltrack-backend/pkg/config"
	"github.com/angelmondragon/labeltrack-backend/pkg/db/models"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	"github.com/angelmondragon/labeltrack-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// stubLabelService answers only the operations these routing tests reach.
type stubLabelService struct {
	labels.Service
	scanned int
}

func (s *stubLabelService) Scan(context.Context, labels.ScanInput) (*labels.ScanResult, error) {
	s.scanned++
	return &labels.ScanResult{Label: &models.Label{ID: uuid.New()}}, nil
}

func (s *stubLabelService) Generate(_ context.Context, input labels.GenerateInput) (*labels.GenerateResult, error) {
	return &labels.GenerateResult{Batch: &models.LabelBatch{ID: uuid.New(), Quantity: input.Quantity}}, nil
}

func (s *stubLabelService) Get(_ context.Context, id uuid.UUID) (*models.Label, error) {
	return &models.Label{ID: id}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "labeltrack"},
	}
}

func newTestRouter(t *testing.T, svc labels.Service) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	lifecycle := metrics.NewLifecycleMetrics(reg)
	lifecycle.ObserveOperation("scan", metrics.OutcomeSuccess, time.Millisecond)
	return NewRouter(testConfig(), nil, stubPinger{}, nil, svc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func bearer(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutesArePublic(t *testing.T) {
	router := newTestRouter(t, &stubLabelService{})
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsRouteExposesLifecycleMetrics(t *testing.T) {
	router := newTestRouter(t, &stubLabelService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "label_transitions_total") {
		t.Fatalf("expected lifecycle metrics in exposition")
	}
}

func TestLabelRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(t, &stubLabelService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/labels/scan", strings.NewReader(`{"code":"BTL-AAAA2222"}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestScanRouteIsNotCapturedByLabelID(t *testing.T) {
	svc := &stubLabelService{}
	router := newTestRouter(t, svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/labels/scan", strings.NewReader(`{"code":"BTL-AAAA2222"}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleStaff))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.scanned != 1 {
		t.Fatalf("expected scan handler to run once, got %d", svc.scanned)
	}
}

func TestGenerateRequiresManagerRole(t *testing.T) {
	router := newTestRouter(t, &stubLabelService{})
	body := `{"sku_id":"` + uuid.NewString() + `","quantity":3}`

	tests := []struct {
		role enums.ActorRole
		want int
	}{
		{enums.ActorRoleStaff, http.StatusForbidden},
		{enums.ActorRoleViewer, http.StatusForbidden},
		{enums.ActorRoleManager, http.StatusCreated},
		{enums.ActorRoleAdmin, http.StatusCreated},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/labels/batches", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tt.role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("role %s: expected %d got %d", tt.role, tt.want, resp.Code)
		}
	}
}

func TestRetireRequiresManagerRole(t *testing.T) {
	router := newTestRouter(t, &stubLabelService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/labels/"+uuid.NewString()+"/retire", strings.NewReader(`{"reason":"DAMAGED"}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleStaff))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestGetLabelRoute(t *testing.T) {
	router := newTestRouter(t, &stubLabelService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/labels/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleViewer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
