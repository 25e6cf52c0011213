package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/logger"
)

type fakeSessionAPI struct {
	registerID    uuid.UUID
	registerErr   error
	registerCalls int

	forced        bool
	heartbeatErr  error
	lastHeartbeat HeartbeatInput

	disconnected []uuid.UUID
}

func (f *fakeSessionAPI) Register(ctx context.Context, input RegisterInput) (uuid.UUID, error) {
	f.registerCalls++
	if f.registerErr != nil {
		return uuid.Nil, f.registerErr
	}
	return f.registerID, nil
}

func (f *fakeSessionAPI) Heartbeat(ctx context.Context, input HeartbeatInput) (bool, error) {
	f.lastHeartbeat = input
	if f.heartbeatErr != nil {
		return false, f.heartbeatErr
	}
	return f.forced, nil
}

func (f *fakeSessionAPI) Disconnect(ctx context.Context, sessionID uuid.UUID) error {
	f.disconnected = append(f.disconnected, sessionID)
	return nil
}

func newTestTracker(t *testing.T, api sessionAPI) *Tracker {
	t.Helper()
	tracker, err := NewTracker(TrackerParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		API:      api,
		Identity: registerInput(),
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tracker
}

func TestBeatReportsActiveOrder(t *testing.T) {
	api := &fakeSessionAPI{registerID: uuid.New()}
	tracker := newTestTracker(t, api)
	ctx := context.Background()

	tracker.register(ctx)
	orderID := uuid.New()
	number := "ST1-0007"
	tracker.SetActiveOrder(&orderID, &number)

	tracker.beat(ctx)
	if api.lastHeartbeat.SessionID != api.registerID {
		t.Fatalf("heartbeat session = %s, want %s", api.lastHeartbeat.SessionID, api.registerID)
	}
	if api.lastHeartbeat.ActiveOrderID == nil || *api.lastHeartbeat.ActiveOrderID != orderID {
		t.Fatalf("active order not reported: %v", api.lastHeartbeat.ActiveOrderID)
	}

	tracker.SetActiveOrder(nil, nil)
	tracker.beat(ctx)
	if api.lastHeartbeat.ActiveOrderID != nil {
		t.Fatal("cleared order still reported")
	}
}

func TestBeatReRegistersAfterForcedDisconnect(t *testing.T) {
	api := &fakeSessionAPI{registerID: uuid.New(), forced: true}
	tracker := newTestTracker(t, api)
	ctx := context.Background()

	tracker.register(ctx)
	if api.registerCalls != 1 {
		t.Fatalf("registerCalls = %d, want 1", api.registerCalls)
	}

	tracker.beat(ctx)
	if api.registerCalls != 2 {
		t.Fatalf("forced disconnect did not re-register, calls = %d", api.registerCalls)
	}
}

func TestBeatRetriesRegistrationAfterFailure(t *testing.T) {
	api := &fakeSessionAPI{registerErr: errors.New("server unreachable")}
	tracker := newTestTracker(t, api)
	ctx := context.Background()

	tracker.register(ctx)
	api.registerErr = nil
	api.registerID = uuid.New()

	tracker.beat(ctx)
	if api.registerCalls != 2 {
		t.Fatalf("registration not retried, calls = %d", api.registerCalls)
	}
	if api.lastHeartbeat.SessionID != uuid.Nil {
		t.Fatal("heartbeat sent before registration succeeded")
	}
}

func TestCloseDisconnectsOnce(t *testing.T) {
	api := &fakeSessionAPI{registerID: uuid.New()}
	tracker := newTestTracker(t, api)

	tracker.register(context.Background())
	tracker.Close()
	tracker.Close()
	if len(api.disconnected) != 1 {
		t.Fatalf("disconnects = %d, want 1", len(api.disconnected))
	}
	if api.disconnected[0] != api.registerID {
		t.Fatalf("disconnected %s, want %s", api.disconnected[0], api.registerID)
	}
}
