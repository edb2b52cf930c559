package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/websocket"

	"drift-and-dredge/server"
	"drift-and-dredge/server/internal/observability"
)

func newTestHub(t *testing.T, seed string) *server.Hub {
	t.Helper()
	cfg := server.DefaultHubConfig()
	if seed != "" {
		cfg.World.Seed = seed
	}
	hub, err := server.NewHubWithConfig(cfg)
	if err != nil {
		t.Fatalf("failed to build hub: %v", err)
	}
	return hub
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t, "health"), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestHTTPJoinReturnsRunSnapshot(t *testing.T) {
	hub := newTestHub(t, "join-endpoint")
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode join payload: %v", err)
	}
	if id, ok := payload["id"].(string); !ok || id == "" {
		t.Fatalf("expected a session id in the join payload, got %v", payload["id"])
	}
	if seed, ok := payload["seed"].(string); !ok || seed != "join-endpoint" {
		t.Fatalf("expected seed %q, got %v", "join-endpoint", payload["seed"])
	}
	kiosks, ok := payload["kiosks"].([]any)
	if !ok || len(kiosks) != 2 {
		t.Fatalf("expected both default kiosks in the join payload, got %v", payload["kiosks"])
	}
}

func TestHTTPJoinRejectsWrongMethod(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t, "join-method"), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405 Method Not Allowed, got %d", resp.Code)
	}
}

func TestDiagnosticsReportsRunStatus(t *testing.T) {
	hub := newTestHub(t, "diagnostics")
	hub.Join()
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}

	if status, ok := payload["status"].(string); !ok || status != "ok" {
		t.Fatalf("expected status ok, got %v", payload["status"])
	}
	if runID, ok := payload["runId"].(string); !ok || runID == "" {
		t.Fatalf("expected a run id, got %v", payload["runId"])
	}
	if tickRate, ok := payload["tickRate"].(float64); !ok || tickRate <= 0 {
		t.Fatalf("expected a positive tick rate, got %v", payload["tickRate"])
	}
	sessions, ok := payload["sessions"].([]any)
	if !ok || len(sessions) != 1 {
		t.Fatalf("expected one session in diagnostics, got %v", payload["sessions"])
	}
	telemetry, ok := payload["telemetry"].(map[string]any)
	if !ok {
		t.Fatalf("expected telemetry object in diagnostics payload, got %T", payload["telemetry"])
	}
	if _, ok := telemetry["commandsProcessed"].(float64); !ok {
		t.Fatalf("expected commandsProcessed counter, payload=%v", telemetry)
	}
	journal, ok := payload["journal"].(map[string]any)
	if !ok {
		t.Fatalf("expected journal stats object, got %T", payload["journal"])
	}
	if _, ok := journal["retained"].(float64); !ok {
		t.Fatalf("expected journal retained gauge, payload=%v", journal)
	}
}

func TestWorldResetAppliesConfigPatch(t *testing.T) {
	hub := newTestHub(t, "reset-endpoint")
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})
	before := hub.RunID()

	body := []byte(`{"seed":"fresh-run","pityWindow":9}`)
	req := httptest.NewRequest(http.MethodPost, "/world/reset", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode reset payload: %v", err)
	}
	if runID, ok := payload["runId"].(string); !ok || runID == before {
		t.Fatalf("expected a fresh run id, got %v", payload["runId"])
	}
	config, ok := payload["config"].(map[string]any)
	if !ok {
		t.Fatalf("expected config echo in reset payload, got %T", payload["config"])
	}
	if seed, ok := config["seed"].(string); !ok || seed != "fresh-run" {
		t.Fatalf("expected seed %q, got %v", "fresh-run", config["seed"])
	}
	if window, ok := config["pityWindow"].(float64); !ok || window != 9 {
		t.Fatalf("expected pity window 9, got %v", config["pityWindow"])
	}

	if got := hub.CurrentConfig().Seed; got != "fresh-run" {
		t.Fatalf("expected hub config updated, got seed %q", got)
	}
}

func TestWorldResetRejectsInvalidPayload(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t, "reset-invalid"), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/world/reset", bytes.NewBufferString("{"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 Bad Request, got %d", resp.Code)
	}
}

func TestCatalogEndpointListsTables(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t, "catalog-endpoint"), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode catalog payload: %v", err)
	}
	biomes, ok := payload["biomes"].([]any)
	if !ok || len(biomes) == 0 {
		t.Fatalf("expected biome catalog, got %v", payload["biomes"])
	}
	events, ok := payload["events"].([]any)
	if !ok || len(events) == 0 {
		t.Fatalf("expected event catalog, got %v", payload["events"])
	}
	if _, ok := payload["loot"].(map[string]any); !ok {
		t.Fatalf("expected loot tables object, got %T", payload["loot"])
	}
	kiosks, ok := payload["kiosks"].([]any)
	if !ok || len(kiosks) != 2 {
		t.Fatalf("expected both kiosk catalogs, got %v", payload["kiosks"])
	}
}

func TestWebsocketMissingIDRejected(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t, "ws-missing-id"), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 Bad Request, got %d", resp.Code)
	}
}

func TestWebsocketRejectsUnknownPlayer(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t, "ws-unknown"), HTTPHandlerConfig{})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "ghost"), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})

	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close an unknown player's connection")
	} else if closeErr, ok := err.(*websocket.CloseError); !ok || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWebsocketCommandRoundTrip(t *testing.T) {
	hub := newTestHub(t, "ws-round-trip")
	join := hub.Join()

	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, join.ID), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})

	readPayload := func() map[string]any {
		t.Helper()
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read websocket payload: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("failed to decode websocket payload: %v", err)
		}
		return decoded
	}

	initial := readPayload()
	if msgType, ok := initial["type"].(string); !ok || msgType != "state" {
		t.Fatalf("expected initial state payload, got %v", initial["type"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "dredge", "seq": 1}); err != nil {
		t.Fatalf("failed to send dredge: %v", err)
	}
	ack := readPayload()
	if msgType, _ := ack["type"].(string); msgType != "commandAck" {
		t.Fatalf("expected commandAck, got %v", ack)
	}
	if seq, _ := ack["seq"].(float64); seq != 1 {
		t.Fatalf("expected ack seq 1, got %v", ack["seq"])
	}

	// Replaying an acknowledged seq acks again without re-queueing.
	if err := conn.WriteJSON(map[string]any{"type": "dredge", "seq": 1}); err != nil {
		t.Fatalf("failed to resend dredge: %v", err)
	}
	duplicate := readPayload()
	if msgType, _ := duplicate["type"].(string); msgType != "commandAck" {
		t.Fatalf("expected duplicate commandAck, got %v", duplicate)
	}

	if err := conn.WriteJSON(map[string]any{"type": "restock", "kiosk": "bait", "seq": 2}); err != nil {
		t.Fatalf("failed to send restock: %v", err)
	}
	reject := readPayload()
	if msgType, _ := reject["type"].(string); msgType != "commandReject" {
		t.Fatalf("expected commandReject, got %v", reject)
	}
	if reason, _ := reject["reason"].(string); reason != server.CommandRejectInvalidKiosk {
		t.Fatalf("expected reason %q, got %v", server.CommandRejectInvalidKiosk, reject["reason"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "heartbeat", "sentAt": 1}); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}
	heartbeat := readPayload()
	if msgType, _ := heartbeat["type"].(string); msgType != "heartbeat" {
		t.Fatalf("expected heartbeat ack, got %v", heartbeat)
	}
	if _, ok := heartbeat["serverTime"].(float64); !ok {
		t.Fatalf("expected serverTime in heartbeat ack, got %v", heartbeat)
	}
}

func TestMountTogglesPprofEndpoints(t *testing.T) {
	enabled := NewHTTPHandler(newTestHub(t, "pprof-on"), HTTPHandlerConfig{
		Observability: observability.Config{EnablePprofTrace: true},
	})

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	resp := httptest.NewRecorder()
	enabled.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index 200 when enabled, got %d", resp.Code)
	}

	disabled := NewHTTPHandler(newTestHub(t, "pprof-off"), HTTPHandlerConfig{})
	resp = httptest.NewRecorder()
	disabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof index 404 when disabled, got %d", resp.Code)
	}
}

func websocketURL(t *testing.T, baseURL, playerID string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	query := parsed.Query()
	query.Set("id", playerID)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
