package devices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
)

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*models.DeviceSession

	markIdleCutoff time.Time
	markIdleRows   int64
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*models.DeviceSession)}
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	session.ID = uuid.New()
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
	}
	return session, nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.DeviceSession, error) {
	session, ok := f.sessions[id]
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
	if name, ok := updates["device_name"].(string); ok {
		session.DeviceName = name
	}
	return session, nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) FindByStation(ctx context.Context, merchantID string, deviceType enums.DeviceType, stationID string) (*models.DeviceSession, error) {
	for _, session := range f.sessions {
		if session.MerchantID == merchantID && session.DeviceType == deviceType && session.StationID == stationID {
			return session, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
}

func (f *fakeSessionRepo) ListByMerchant(ctx context.Context, merchantID string) ([]models.DeviceSession, error) {
	var out []models.DeviceSession
	for _, session := range f.sessions {
		if session.MerchantID == merchantID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) MarkIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.markIdleCutoff = cutoff
	return f.markIdleRows, nil
}

type fakeLiveness struct {
	setKeys []string
	setTTLs []time.Duration
	delKeys []string
}

func (f *fakeLiveness) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.setKeys = append(f.setKeys, key)
	f.setTTLs = append(f.setTTLs, ttl)
	return nil
}

func (f *fakeLiveness) Del(ctx context.Context, keys ...string) error {
	f.delKeys = append(f.delKeys, keys...)
	return nil
}

func (f *fakeLiveness) LivenessKey(sessionID string) string {
	return "session:live:" + sessionID
}

func newTestService(t *testing.T, repo Repository, liveness livenessStore, now func() time.Time) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repo:       repo,
		Liveness:   liveness,
		StaleAfter: 45 * time.Second,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func registerInput() RegisterInput {
	return RegisterInput{
		MerchantID:  "merchant-1",
		DeviceType:  enums.DeviceTypePOS,
		DeviceName:  "Front Register",
		StationID:   "station-1",
		StationName: "Station 1",
	}
}

func TestRegisterCreatesSessionAndLivenessKey(t *testing.T) {
	repo := newFakeSessionRepo()
	liveness := &fakeLiveness{}
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	service := newTestService(t, repo, liveness, func() time.Time { return now })

	session, err := service.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if session.Status != enums.SessionStatusOnline {
		t.Fatalf("status = %s, want online", session.Status)
	}
	if !session.LastHeartbeatAt.Equal(now) {
		t.Fatalf("last heartbeat = %v, want %v", session.LastHeartbeatAt, now)
	}
	if len(liveness.setKeys) != 1 || liveness.setTTLs[0] != 45*time.Second {
		t.Fatalf("liveness not refreshed: keys=%v ttls=%v", liveness.setKeys, liveness.setTTLs)
	}
}

func TestRegisterSameStationReusesRecord(t *testing.T) {
	repo := newFakeSessionRepo()
	service := newTestService(t, repo, &fakeLiveness{}, time.Now)
	ctx := context.Background()

	first, err := service.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}

	input := registerInput()
	input.DeviceName = "Front Register (restarted)"
	second, err := service.Register(ctx, input)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("restart created a new session: %s != %s", second.ID, first.ID)
	}
	if second.DeviceName != "Front Register (restarted)" {
		t.Fatalf("device name not refreshed: %s", second.DeviceName)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(repo.sessions))
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	service := newTestService(t, newFakeSessionRepo(), nil, time.Now)
	ctx := context.Background()

	missing := registerInput()
	missing.StationID = ""
	if _, err := service.Register(ctx, missing); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	badType := registerInput()
	badType.DeviceType = enums.DeviceType("toaster")
	if _, err := service.Register(ctx, badType); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHeartbeatRefreshesSession(t *testing.T) {
	repo := newFakeSessionRepo()
	liveness := &fakeLiveness{}
	current := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	service := newTestService(t, repo, liveness, func() time.Time { return current })
	ctx := context.Background()

	session, err := service.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	current = current.Add(15 * time.Second)
	orderID := uuid.New()
	number := "ST1-0042"
	result, err := service.Heartbeat(ctx, HeartbeatInput{
		SessionID:         session.ID,
		ActiveOrderID:     &orderID,
		ActiveOrderNumber: &number,
	})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if result.ForcedDisconnect {
		t.Fatal("unexpected forced disconnect")
	}
	if !result.Session.LastHeartbeatAt.Equal(current) {
		t.Fatalf("heartbeat time = %v, want %v", result.Session.LastHeartbeatAt, current)
	}
	if result.Session.ActiveOrderID == nil || *result.Session.ActiveOrderID != orderID {
		t.Fatalf("active order not recorded: %v", result.Session.ActiveOrderID)
	}
}

func TestHeartbeatUnknownSessionForcesDisconnect(t *testing.T) {
	service := newTestService(t, newFakeSessionRepo(), nil, time.Now)

	result, err := service.Heartbeat(context.Background(), HeartbeatInput{SessionID: uuid.New()})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if !result.ForcedDisconnect {
		t.Fatal("expected forced disconnect for a missing session")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	repo := newFakeSessionRepo()
	liveness := &fakeLiveness{}
	service := newTestService(t, repo, liveness, time.Now)
	ctx := context.Background()

	session, err := service.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := service.Disconnect(ctx, session.ID); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	if err := service.Disconnect(ctx, session.ID); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if len(liveness.delKeys) != 2 {
		t.Fatalf("liveness deletes = %d, want 2", len(liveness.delKeys))
	}

	if err := service.Disconnect(ctx, uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil id, got %v", err)
	}
}

func TestMarkIdleStaleUsesHeartbeatWindow(t *testing.T) {
	repo := newFakeSessionRepo()
	repo.markIdleRows = 3
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	service := newTestService(t, repo, nil, func() time.Time { return now })

	rows, err := service.MarkIdleStale(context.Background())
	if err != nil {
		t.Fatalf("MarkIdleStale: %v", err)
	}
	if rows != 3 {
		t.Fatalf("rows = %d, want 3", rows)
	}
	want := now.Add(-45 * time.Second)
	if !repo.markIdleCutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", repo.markIdleCutoff, want)
	}
}

func TestHeartbeatPassesReportedStatusThrough(t *testing.T) {
	repo := newFakeSessionRepo()
	service := newTestService(t, repo, nil, time.Now)
	ctx := context.Background()

	session, err := service.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := service.Heartbeat(ctx, HeartbeatInput{
		SessionID: session.ID,
		Status:    enums.SessionStatusIdle,
	})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if result.Session.Status != enums.SessionStatusIdle {
		t.Fatalf("status = %s, want idle", result.Session.Status)
	}

	// empty status defaults to online
	result, err = service.Heartbeat(ctx, HeartbeatInput{SessionID: session.ID})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if result.Session.Status != enums.SessionStatusOnline {
		t.Fatalf("status = %s, want online", result.Session.Status)
	}

	_, err = service.Heartbeat(ctx, HeartbeatInput{
		SessionID: session.ID,
		Status:    enums.SessionStatus("rebooting"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}
