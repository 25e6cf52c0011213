package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
)

type livenessStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LivenessKey(sessionID string) string
}

// RegisterInput identifies the device announcing itself.
type RegisterInput struct {
	MerchantID  string
	DeviceType  enums.DeviceType
	DeviceName  string
	StationID   string
	StationName string
	UserID      *string
}

// HeartbeatInput refreshes a session's liveness and active order reference.
// Status lets a terminal report itself idle (attract screen, drawer closed)
// without disconnecting; empty means online.
type HeartbeatInput struct {
	SessionID         uuid.UUID
	Status            enums.SessionStatus
	ActiveOrderID     *uuid.UUID
	ActiveOrderNumber *string
}

// HeartbeatResult tells the terminal whether its session still exists.
type HeartbeatResult struct {
	Session          *models.DeviceSession
	ForcedDisconnect bool
}

// ServiceParams configure the device session service.
type ServiceParams struct {
	Logger   *logger.Logger
	Repo     Repository
	Liveness livenessStore

	// StaleAfter is the heartbeat window mirrored into the redis TTL.
	StaleAfter time.Duration

	Now func() time.Time
}

// Service owns device session lifecycle on the server side. Sessions are
// visibility-only records: nothing here ever blocks an order.
type Service struct {
	logg       *logger.Logger
	repo       Repository
	liveness   livenessStore
	staleAfter time.Duration
	now        func() time.Time
}

// NewService builds the session service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 45 * time.Second
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:       params.Logger,
		repo:       params.Repo,
		liveness:   params.Liveness,
		staleAfter: staleAfter,
		now:        now,
	}, nil
}

// Register announces a device. Calling it again for the same
// merchant/device/station reuses the existing record, so a crashed terminal
// that restarts does not leak sessions.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.DeviceSession, error) {
	if input.MerchantID == "" || input.StationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant_id and station_id are required")
	}
	if !input.DeviceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown device type")
	}

	existing, err := s.repo.FindByStation(ctx, input.MerchantID, input.DeviceType, input.StationID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	now := s.now()
	if existing != nil {
		session, err := s.repo.Update(ctx, existing.ID, map[string]any{
			"device_name":       input.DeviceName,
			"station_name":      input.StationName,
			"user_id":           input.UserID,
			"status":            enums.SessionStatusOnline,
			"last_heartbeat_at": now,
		})
		if err != nil {
			return nil, err
		}
		s.touchLiveness(ctx, session.ID)
		return session, nil
	}

	session, err := s.repo.Create(ctx, &models.DeviceSession{
		MerchantID:      input.MerchantID,
		DeviceType:      input.DeviceType,
		DeviceName:      input.DeviceName,
		StationID:       input.StationID,
		StationName:     input.StationName,
		UserID:          input.UserID,
		Status:          enums.SessionStatusOnline,
		LastHeartbeatAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.touchLiveness(ctx, session.ID)
	s.logg.Info(s.logg.WithSessionID(ctx, session.ID.String()), "device session registered")
	return session, nil
}

// Heartbeat refreshes the session. A missing record means an admin removed
// it; the terminal is told to re-register via ForcedDisconnect.
func (s *Service) Heartbeat(ctx context.Context, input HeartbeatInput) (*HeartbeatResult, error) {
	if input.SessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}
	status := input.Status
	if status == "" {
		status = enums.SessionStatusOnline
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown session status")
	}

	session, err := s.repo.Update(ctx, input.SessionID, map[string]any{
		"active_order_id":     input.ActiveOrderID,
		"active_order_number": input.ActiveOrderNumber,
		"status":              status,
		"last_heartbeat_at":   s.now(),
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return &HeartbeatResult{ForcedDisconnect: true}, nil
		}
		return nil, err
	}
	s.touchLiveness(ctx, session.ID)
	return &HeartbeatResult{Session: session}, nil
}

// Disconnect removes the session. Unknown sessions succeed, a disconnect
// retry after a crash must not error.
func (s *Service) Disconnect(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session_id is required")
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	if s.liveness != nil {
		if err := s.liveness.Del(ctx, s.liveness.LivenessKey(sessionID.String())); err != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, sessionID.String()), "clearing liveness key failed")
		}
	}
	return nil
}

// List returns every session for the merchant, dashboards show the fleet.
func (s *Service) List(ctx context.Context, merchantID string) ([]models.DeviceSession, error) {
	if merchantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant_id is required")
	}
	return s.repo.ListByMerchant(ctx, merchantID)
}

// MarkIdleStale downgrades sessions whose heartbeat lapsed. The janitor
// calls this on its sweep.
func (s *Service) MarkIdleStale(ctx context.Context) (int64, error) {
	return s.repo.MarkIdleBefore(ctx, s.now().Add(-s.staleAfter))
}

func (s *Service) touchLiveness(ctx context.Context, id uuid.UUID) {
	if s.liveness == nil {
		return
	}
	key := s.liveness.LivenessKey(id.String())
	if err := s.liveness.Set(ctx, key, s.now().Unix(), s.staleAfter); err != nil {
		s.logg.Warn(s.logg.WithSessionID(ctx, id.String()), "refreshing liveness key failed")
	}
}
