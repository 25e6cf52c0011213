package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/pkg/config"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
)

type stubSessionRepo struct{}

func (stubSessionRepo) Create(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	session.ID = uuid.New()
	return session, nil
}

func (stubSessionRepo) Get(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
}

func (stubSessionRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.DeviceSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
}

func (stubSessionRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (stubSessionRepo) FindByStation(ctx context.Context, merchantID string, deviceType enums.DeviceType, stationID string) (*models.DeviceSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
}

func (stubSessionRepo) ListByMerchant(ctx context.Context, merchantID string) ([]models.DeviceSession, error) {
	return nil, nil
}

func (stubSessionRepo) MarkIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	service, err := devices.NewService(devices.ServiceParams{
		Logger: logg,
		Repo:   stubSessionRepo{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	cfg := &config.Config{}
	cfg.App.Env = "test"
	return NewRouter(cfg, logg, service, prometheus.NewRegistry())
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-TillSync-Env"); got != "test" {
		t.Fatalf("env header = %q, want test", got)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRouterSessionRoutesMounted(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/device-sessions?merchant_id=merchant-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
