package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/api/responses"
	"github.com/tillpoint/tillsync/api/validators"
	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

type registerDeviceRequest struct {
	MerchantID  string  `json:"merchant_id" validate:"required"`
	DeviceType  string  `json:"device_type" validate:"required"`
	DeviceName  string  `json:"device_name,omitempty"`
	StationID   string  `json:"station_id" validate:"required"`
	StationName string  `json:"station_name,omitempty"`
	UserID      *string `json:"user_id,omitempty"`
}

type heartbeatRequest struct {
	SessionID         string  `json:"session_id" validate:"required,uuid"`
	Status            string  `json:"status,omitempty" validate:"omitempty,oneof=online idle"`
	ActiveOrderID     *string `json:"active_order_id,omitempty"`
	ActiveOrderNumber *string `json:"active_order_number,omitempty"`
}

type disconnectRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type deviceSessionResponse struct {
	ID                string  `json:"id"`
	MerchantID        string  `json:"merchant_id"`
	DeviceType        string  `json:"device_type"`
	DeviceName        string  `json:"device_name,omitempty"`
	StationID         string  `json:"station_id"`
	StationName       string  `json:"station_name,omitempty"`
	Status            string  `json:"status"`
	ActiveOrderID     *string `json:"active_order_id,omitempty"`
	ActiveOrderNumber *string `json:"active_order_number,omitempty"`
	LastHeartbeatAt   string  `json:"last_heartbeat_at"`
	ForcedDisconnect  bool    `json:"forced_disconnect"`
}

// RegisterDeviceSession announces a terminal. Re-registering the same
// station reuses the existing record.
func RegisterDeviceSession(svc *devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerDeviceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceType, err := enums.ParseDeviceType(req.DeviceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid device type"))
			return
		}

		session, err := svc.Register(r.Context(), devices.RegisterInput{
			MerchantID:  strings.TrimSpace(req.MerchantID),
			DeviceType:  deviceType,
			DeviceName:  strings.TrimSpace(req.DeviceName),
			StationID:   strings.TrimSpace(req.StationID),
			StationName: strings.TrimSpace(req.StationName),
			UserID:      req.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionResponse(session, false))
	}
}

// HeartbeatDeviceSession refreshes a session. A session the server no longer
// knows comes back with forced_disconnect set, still HTTP 200.
func HeartbeatDeviceSession(svc *devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req heartbeatRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		input := devices.HeartbeatInput{
			SessionID: sessionID,
			Status:    enums.SessionStatus(req.Status),
		}
		if req.ActiveOrderID != nil {
			orderID, err := uuid.Parse(*req.ActiveOrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid active order id"))
				return
			}
			input.ActiveOrderID = &orderID
		}
		input.ActiveOrderNumber = req.ActiveOrderNumber

		result, err := svc.Heartbeat(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.ForcedDisconnect {
			responses.WriteSuccess(w, deviceSessionResponse{
				ID:               req.SessionID,
				ForcedDisconnect: true,
			})
			return
		}
		responses.WriteSuccess(w, sessionResponse(result.Session, false))
	}
}

// DisconnectDeviceSession removes a session. Unknown sessions are a success,
// terminals retry disconnects after crashes.
func DisconnectDeviceSession(svc *devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req disconnectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		if err := svc.Disconnect(r.Context(), sessionID); err != nil {
			if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "disconnected"})
	}
}

// ListDeviceSessions returns the merchant's terminal fleet.
func ListDeviceSessions(svc *devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := strings.TrimSpace(r.URL.Query().Get("merchant_id"))
		sessions, err := svc.List(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]deviceSessionResponse, 0, len(sessions))
		for i := range sessions {
			out = append(out, sessionResponse(&sessions[i], false))
		}
		responses.WriteSuccess(w, out)
	}
}

func sessionResponse(session *models.DeviceSession, forced bool) deviceSessionResponse {
	resp := deviceSessionResponse{
		ID:               session.ID.String(),
		MerchantID:       session.MerchantID,
		DeviceType:       session.DeviceType.String(),
		DeviceName:       session.DeviceName,
		StationID:        session.StationID,
		StationName:      session.StationName,
		Status:           session.Status.String(),
		LastHeartbeatAt:  session.LastHeartbeatAt.Format(timeFormat),
		ForcedDisconnect: forced,
	}
	if session.ActiveOrderID != nil {
		id := session.ActiveOrderID.String()
		resp.ActiveOrderID = &id
	}
	resp.ActiveOrderNumber = session.ActiveOrderNumber
	return resp
}
