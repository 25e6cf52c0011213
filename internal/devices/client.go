package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// Client talks to the session service's HTTP surface on behalf of a terminal
// process.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a session client against the given base URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("session api base url is required")
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type registerRequest struct {
	MerchantID  string  `json:"merchant_id"`
	DeviceType  string  `json:"device_type"`
	DeviceName  string  `json:"device_name,omitempty"`
	StationID   string  `json:"station_id"`
	StationName string  `json:"station_name,omitempty"`
	UserID      *string `json:"user_id,omitempty"`
}

type heartbeatRequest struct {
	SessionID         string  `json:"session_id"`
	Status            string  `json:"status,omitempty"`
	ActiveOrderID     *string `json:"active_order_id,omitempty"`
	ActiveOrderNumber *string `json:"active_order_number,omitempty"`
}

type disconnectRequest struct {
	SessionID string `json:"session_id"`
}

type sessionPayload struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	ForcedDisconnect bool   `json:"forced_disconnect"`
}

// Register announces the device and returns its session ID.
func (c *Client) Register(ctx context.Context, input RegisterInput) (uuid.UUID, error) {
	payload := registerRequest{
		MerchantID:  input.MerchantID,
		DeviceType:  input.DeviceType.String(),
		DeviceName:  input.DeviceName,
		StationID:   input.StationID,
		StationName: input.StationName,
		UserID:      input.UserID,
	}
	var out struct {
		Data sessionPayload `json:"data"`
	}
	if err := c.post(ctx, "/v1/device-sessions/register", payload, &out); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(out.Data.ID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse session id")
	}
	return id, nil
}

// Heartbeat refreshes the session. The returned bool reports whether the
// server forced a disconnect, meaning the terminal must re-register.
func (c *Client) Heartbeat(ctx context.Context, input HeartbeatInput) (bool, error) {
	payload := heartbeatRequest{
		SessionID: input.SessionID.String(),
		Status:    input.Status.String(),
	}
	if input.ActiveOrderID != nil {
		id := input.ActiveOrderID.String()
		payload.ActiveOrderID = &id
	}
	payload.ActiveOrderNumber = input.ActiveOrderNumber

	var out struct {
		Data sessionPayload `json:"data"`
	}
	if err := c.post(ctx, "/v1/device-sessions/heartbeat", payload, &out); err != nil {
		return false, err
	}
	return out.Data.ForcedDisconnect, nil
}

// Disconnect removes the session. Safe to retry.
func (c *Client) Disconnect(ctx context.Context, sessionID uuid.UUID) error {
	return c.post(ctx, "/v1/device-sessions/disconnect", disconnectRequest{SessionID: sessionID.String()}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal session request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build session request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute session request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"session request failed")
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode session response")
	}
	return nil
}
