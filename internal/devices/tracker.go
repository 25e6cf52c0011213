package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/enums"
	"github.com/tillpoint/tillsync/pkg/logger"
)

const defaultHeartbeatInterval = 15 * time.Second

// sessionAPI is the slice of the session surface a terminal needs. Satisfied
// by *Client over HTTP.
type sessionAPI interface {
	Register(ctx context.Context, input RegisterInput) (uuid.UUID, error)
	Heartbeat(ctx context.Context, input HeartbeatInput) (bool, error)
	Disconnect(ctx context.Context, sessionID uuid.UUID) error
}

// TrackerParams configure a terminal-side session tracker.
type TrackerParams struct {
	Logger   *logger.Logger
	API      sessionAPI
	Identity RegisterInput
	Interval time.Duration
}

// Tracker keeps one terminal's session alive: it registers on Run, heartbeats
// on an interval, re-registers after a forced disconnect, and disconnects on
// Close. Everything is best-effort; heartbeat failures are logged and the
// loop keeps going.
type Tracker struct {
	logg     *logger.Logger
	api      sessionAPI
	identity RegisterInput
	interval time.Duration

	mu                sync.Mutex
	sessionID         uuid.UUID
	activeOrderID     *uuid.UUID
	activeOrderNumber *string
}

// NewTracker builds a session tracker.
func NewTracker(params TrackerParams) (*Tracker, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.API == nil {
		return nil, fmt.Errorf("session api required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &Tracker{
		logg:     params.Logger,
		api:      params.API,
		identity: params.Identity,
		interval: interval,
	}, nil
}

// SetActiveOrder records what the next heartbeat reports as in progress.
func (t *Tracker) SetActiveOrder(id *uuid.UUID, number *string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeOrderID = id
	t.activeOrderNumber = number
}

// Run registers and heartbeats until the context is cancelled, then
// disconnects.
func (t *Tracker) Run(ctx context.Context) {
	t.register(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Close()
			return
		case <-ticker.C:
			t.beat(ctx)
		}
	}
}

// Close disconnects the session if one exists. Uses its own short deadline
// because the run context is usually already cancelled by the time shutdown
// reaches here.
func (t *Tracker) Close() {
	t.mu.Lock()
	id := t.sessionID
	t.sessionID = uuid.Nil
	t.mu.Unlock()
	if id == uuid.Nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := t.api.Disconnect(ctx, id); err != nil {
		t.logg.Warn(t.logg.WithSessionID(ctx, id.String()), "session disconnect failed")
	}
}

func (t *Tracker) register(ctx context.Context) {
	id, err := t.api.Register(ctx, t.identity)
	if err != nil {
		t.logg.Error(ctx, "session register failed", err)
		return
	}
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
	t.logg.Info(t.logg.WithSessionID(ctx, id.String()), "session registered")
}

func (t *Tracker) beat(ctx context.Context) {
	t.mu.Lock()
	id := t.sessionID
	orderID := t.activeOrderID
	orderNumber := t.activeOrderNumber
	t.mu.Unlock()

	if id == uuid.Nil {
		// registration failed earlier, keep trying
		t.register(ctx)
		return
	}

	forced, err := t.api.Heartbeat(ctx, HeartbeatInput{
		SessionID:         id,
		Status:            enums.SessionStatusOnline,
		ActiveOrderID:     orderID,
		ActiveOrderNumber: orderNumber,
	})
	if err != nil {
		t.logg.Warn(t.logg.WithSessionID(ctx, id.String()), "session heartbeat failed")
		return
	}
	if forced {
		t.logg.Warn(t.logg.WithSessionID(ctx, id.String()), "session removed by server, re-registering")
		t.mu.Lock()
		t.sessionID = uuid.Nil
		t.mu.Unlock()
		t.register(ctx)
	}
}
