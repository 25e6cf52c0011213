package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
)

func TestClientRegisterParsesSessionID(t *testing.T) {
	sessionID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/device-sessions/register" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body registerRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.DeviceType != "pos" || body.StationID != "station-1" {
			t.Errorf("unexpected request: %+v", body)
		}
		fmt.Fprintf(w, `{"data":{"id":%q,"status":"online"}}`, sessionID)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := client.Register(context.Background(), RegisterInput{
		MerchantID: "merchant-1",
		DeviceType: enums.DeviceTypePOS,
		StationID:  "station-1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got != sessionID {
		t.Fatalf("session id = %s, want %s", got, sessionID)
	}
}

func TestClientHeartbeatReportsForcedDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"forced_disconnect":true}}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	forced, err := client.Heartbeat(context.Background(), HeartbeatInput{SessionID: uuid.New()})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if !forced {
		t.Fatal("expected forced disconnect")
	}
}

func TestClientSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Disconnect(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for empty base url")
	}
	client, err := NewClient("http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.baseURL != "http://localhost:8080" {
		t.Fatalf("baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
}
