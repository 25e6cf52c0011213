package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
)

type memorySessionRepo struct {
	sessions map[uuid.UUID]*models.DeviceSession
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[uuid.UUID]*models.DeviceSession)}
}

func (m *memorySessionRepo) Create(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	session.ID = uuid.New()
	m.sessions[session.ID] = session
	return session, nil
}

func (m *memorySessionRepo) Get(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
	}
	return session, nil
}

func (m *memorySessionRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.DeviceSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
	}
	if status, ok := updates["status"].(enums.SessionStatus); ok {
		session.Status = status
	}
	if at, ok := updates["last_heartbeat_at"].(time.Time); ok {
		session.LastHeartbeatAt = at
	}
	if orderID, ok := updates["active_order_id"].(*uuid.UUID); ok {
		session.ActiveOrderID = orderID
	}
	if number, ok := updates["active_order_number"].(*string); ok {
		session.ActiveOrderNumber = number
	}
	return session, nil
}

func (m *memorySessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

func (m *memorySessionRepo) FindByStation(ctx context.Context, merchantID string, deviceType enums.DeviceType, stationID string) (*models.DeviceSession, error) {
	for _, session := range m.sessions {
		if session.MerchantID == merchantID && session.DeviceType == deviceType && session.StationID == stationID {
			return session, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
}

func (m *memorySessionRepo) ListByMerchant(ctx context.Context, merchantID string) ([]models.DeviceSession, error) {
	var out []models.DeviceSession
	for _, session := range m.sessions {
		if session.MerchantID == merchantID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (m *memorySessionRepo) MarkIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newSessionService(t *testing.T, repo devices.Repository) (*devices.Service, *logger.Logger) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	service, err := devices.NewService(devices.ServiceParams{
		Logger: logg,
		Repo:   repo,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, logg
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestRegisterDeviceSessionRoundTrip(t *testing.T) {
	repo := newMemorySessionRepo()
	service, logg := newSessionService(t, repo)
	handler := RegisterDeviceSession(service, logg)

	body := `{"merchant_id":"merchant-1","device_type":"pos","device_name":"Front","station_id":"station-1","station_name":"Station 1"}`
	rec := postJSON(t, handler, "/v1/device-sessions/register", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	data := decodeData(t, rec)
	if data["status"] != "online" {
		t.Fatalf("status = %v, want online", data["status"])
	}
	if data["forced_disconnect"] != false {
		t.Fatalf("forced_disconnect = %v, want false", data["forced_disconnect"])
	}

	// same station registers again, same session comes back
	rec = postJSON(t, handler, "/v1/device-sessions/register", body)
	again := decodeData(t, rec)
	if again["id"] != data["id"] {
		t.Fatalf("re-register returned a new session: %v != %v", again["id"], data["id"])
	}
}

func TestRegisterDeviceSessionRejectsUnknownType(t *testing.T) {
	service, logg := newSessionService(t, newMemorySessionRepo())
	handler := RegisterDeviceSession(service, logg)

	rec := postJSON(t, handler, "/v1/device-sessions/register",
		`{"merchant_id":"merchant-1","device_type":"toaster","station_id":"station-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHeartbeatMissingSessionIDIsBadRequest(t *testing.T) {
	service, logg := newSessionService(t, newMemorySessionRepo())
	handler := HeartbeatDeviceSession(service, logg)

	rec := postJSON(t, handler, "/v1/device-sessions/heartbeat", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHeartbeatUnknownSessionReturnsForcedDisconnect(t *testing.T) {
	service, logg := newSessionService(t, newMemorySessionRepo())
	handler := HeartbeatDeviceSession(service, logg)

	body := `{"session_id":"` + uuid.NewString() + `"}`
	rec := postJSON(t, handler, "/v1/device-sessions/heartbeat", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeData(t, rec)
	if data["forced_disconnect"] != true {
		t.Fatalf("forced_disconnect = %v, want true", data["forced_disconnect"])
	}
}

func TestHeartbeatRecordsActiveOrder(t *testing.T) {
	repo := newMemorySessionRepo()
	service, logg := newSessionService(t, repo)

	session, err := service.Register(context.Background(), devices.RegisterInput{
		MerchantID: "merchant-1",
		DeviceType: enums.DeviceTypePOS,
		StationID:  "station-1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	orderID := uuid.NewString()
	body := `{"session_id":"` + session.ID.String() + `","active_order_id":"` + orderID + `","active_order_number":"ST1-0001"}`
	rec := postJSON(t, HeartbeatDeviceSession(service, logg), "/v1/device-sessions/heartbeat", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["active_order_id"] != orderID {
		t.Fatalf("active_order_id = %v, want %s", data["active_order_id"], orderID)
	}
}

func TestDisconnectUnknownSessionSucceeds(t *testing.T) {
	service, logg := newSessionService(t, newMemorySessionRepo())
	handler := DisconnectDeviceSession(service, logg)

	body := `{"session_id":"` + uuid.NewString() + `"}`
	rec := postJSON(t, handler, "/v1/device-sessions/disconnect", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeData(t, rec)
	if data["status"] != "disconnected" {
		t.Fatalf("status = %v, want disconnected", data["status"])
	}
}

func TestListDeviceSessionsRequiresMerchantID(t *testing.T) {
	service, logg := newSessionService(t, newMemorySessionRepo())
	handler := ListDeviceSessions(service, logg)

	req := httptest.NewRequest(http.MethodGet, "/v1/device-sessions", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListDeviceSessionsReturnsFleet(t *testing.T) {
	repo := newMemorySessionRepo()
	service, logg := newSessionService(t, repo)
	ctx := context.Background()

	for _, deviceType := range []enums.DeviceType{enums.DeviceTypePOS, enums.DeviceTypeCustomerDisplay} {
		if _, err := service.Register(ctx, devices.RegisterInput{
			MerchantID: "merchant-1",
			DeviceType: deviceType,
			StationID:  "station-1",
		}); err != nil {
			t.Fatalf("Register %s: %v", deviceType, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/device-sessions?merchant_id=merchant-1", nil)
	rec := httptest.NewRecorder()
	ListDeviceSessions(service, logg)(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("sessions = %d, want 2", len(envelope.Data))
	}
}

func TestHeartbeatReportsIdleStatus(t *testing.T) {
	repo := newMemorySessionRepo()
	service, logg := newSessionService(t, repo)

	session, err := service.Register(context.Background(), devices.RegisterInput{
		MerchantID: "merchant-1",
		DeviceType: enums.DeviceTypePOS,
		StationID:  "station-1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	body := `{"session_id":"` + session.ID.String() + `","status":"idle"}`
	rec := postJSON(t, HeartbeatDeviceSession(service, logg), "/v1/device-sessions/heartbeat", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["status"] != "idle" {
		t.Fatalf("session status = %v, want idle", data["status"])
	}

	rec = postJSON(t, HeartbeatDeviceSession(service, logg), "/v1/device-sessions/heartbeat",
		`{"session_id":"`+session.ID.String()+`","status":"rebooting"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown status", rec.Code)
	}
}
