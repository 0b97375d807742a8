package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"mcp-tools-go/internal/session"
	"mcp-tools-go/internal/tools/weather"
)

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolResult struct {
	IsError           bool           `json:"isError"`
	StructuredContent map[string]any `json:"structuredContent"`
	Content           []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	s, err := New(cfg, zerolog.Nop(), WithMetricsRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() { s.store.Close() })
	return s.Handler()
}

func rpc(t *testing.T, h http.Handler, sessionID string, headers map[string]string, method string, params any) (*httptest.ResponseRecorder, rpcResponse) {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		body["params"] = params
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(session.HeaderName, sessionID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp rpcResponse
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func initialize(t *testing.T, h http.Handler) string {
	t.Helper()
	w, resp := rpc(t, h, "", nil, "initialize", map[string]any{
		"protocolVersion": "2025-06-18",
		"clientInfo":      map[string]string{"name": "test", "version": "1"},
	})
	if w.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("initialize failed: %d %s", w.Code, w.Body.String())
	}
	id := w.Header().Get(session.HeaderName)
	if id == "" {
		t.Fatal("Expected session header on initialize")
	}
	return id
}

func callTool(t *testing.T, h http.Handler, sessionID string, headers map[string]string, name string, args any) toolResult {
	t.Helper()
	w, resp := rpc(t, h, sessionID, headers, "tools/call", map[string]any{"name": name, "arguments": args})
	if w.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("tools/call %s failed: %d %s", name, w.Code, w.Body.String())
	}
	var result toolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to decode tool result: %v", err)
	}
	return result
}

func TestServer_ToolsList(t *testing.T) {
	h := newTestServer(t, DefaultConfig())
	sid := initialize(t, h)

	_, resp := rpc(t, h, sid, nil, "tools/list", nil)
	if resp.Error != nil {
		t.Fatalf("tools/list failed: %+v", resp.Error)
	}

	var list struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &list); err != nil {
		t.Fatalf("Failed to decode tools: %v", err)
	}

	want := []string{"add", "current_weather", "simple_forecast", "subtract"}
	if len(list.Tools) != len(want) {
		t.Fatalf("Expected %d tools, got %d", len(want), len(list.Tools))
	}
	for i, name := range want {
		if list.Tools[i].Name != name {
			t.Errorf("Tool %d: expected %s, got %s", i, name, list.Tools[i].Name)
		}
	}
	if list.Tools[0].Description != "LOG_LEVEL=INFO, NUMBER_PRECISION=4" {
		t.Errorf("Unexpected add description %q", list.Tools[0].Description)
	}
}

func TestServer_RequiresSession(t *testing.T) {
	h := newTestServer(t, DefaultConfig())

	w, _ := rpc(t, h, "", nil, "tools/list", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without session, got %d", w.Code)
	}

	w, _ = rpc(t, h, "sess.1700000000."+strings.Repeat("A", 43), nil, "tools/list", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", w.Code)
	}
}

func TestServer_Arithmetic(t *testing.T) {
	tests := []struct {
		name      string
		precision string
		tool      string
		args      string
		want      float64
	}{
		{"float noise removed", "4", "add", `{"a":0.1,"b":0.2}`, 0.3},
		{"exact half rounds up", "2", "add", `{"a":1.005,"b":1.005}`, 2.01},
		{"zero difference", "4", "subtract", `{"a":0,"b":0}`, 0},
		{"negative precision clamps", "-3", "add", `{"a":1.5,"b":1}`, 3},
		{"invalid precision defaults", "abc", "subtract", `{"a":1,"b":0.33333}`, 0.6667},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig(lookupFrom(map[string]string{EnvPrecision: tt.precision}), zerolog.Nop())
			h := newTestServer(t, cfg)
			sid := initialize(t, h)

			result := callTool(t, h, sid, nil, tt.tool, json.RawMessage(tt.args))
			if result.IsError {
				t.Fatalf("Unexpected tool error: %+v", result.Content)
			}
			got, ok := result.StructuredContent["result"].(float64)
			if !ok {
				t.Fatalf("Missing result in %+v", result.StructuredContent)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestServer_ArithmeticRejectsBadInput(t *testing.T) {
	h := newTestServer(t, DefaultConfig())
	sid := initialize(t, h)

	result := callTool(t, h, sid, nil, "add", map[string]any{"a": "one", "b": 2})
	if !result.IsError {
		t.Error("Expected tool error for non-numeric operand")
	}

	result = callTool(t, h, sid, nil, "subtract", map[string]any{"a": 1})
	if !result.IsError {
		t.Error("Expected tool error for missing operand")
	}
}

func TestServer_WeatherOverrideHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "header-key" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"name":%q,"main":{"temp":21.5,"humidity":40,"pressure":1012},"weather":[{"description":"clear sky"}]}`, r.URL.Query().Get("q"))
	}))
	defer upstream.Close()

	cfg := DefaultConfig()
	cfg.Weather.AllowOverrides = true
	h := newTestServer(t, cfg)
	sid := initialize(t, h)

	headers := map[string]string{
		weather.HeaderAPIURL: upstream.URL,
		weather.HeaderAPIKey: "header-key",
	}
	result := callTool(t, h, sid, headers, "current_weather", map[string]any{"city": " Busan "})
	if result.IsError {
		t.Fatalf("Unexpected tool error: %+v", result.Content)
	}
	if ok, _ := result.StructuredContent["ok"].(bool); !ok {
		t.Fatalf("Expected ok result, got %+v", result.StructuredContent)
	}
	if city := result.StructuredContent["city"]; city != "Busan" {
		t.Errorf("Expected trimmed city Busan, got %v", city)
	}
	if temp := result.StructuredContent["temp"]; temp != 21.5 {
		t.Errorf("Expected temp 21.5, got %v", temp)
	}
}

func TestServer_WeatherOverrideHeadersDisabledByDefault(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		fmt.Fprint(w, `{"main":{"temp":1}}`)
	}))
	defer upstream.Close()

	h := newTestServer(t, DefaultConfig())
	sid := initialize(t, h)

	headers := map[string]string{
		weather.HeaderAPIURL: upstream.URL,
		weather.HeaderAPIKey: "header-key",
	}
	result := callTool(t, h, sid, headers, "current_weather", map[string]any{"city": "Busan"})
	if ok, _ := result.StructuredContent["ok"].(bool); ok {
		t.Errorf("Expected override headers to be ignored, got %+v", result.StructuredContent)
	}
	if _, ok := result.StructuredContent["raw"]; ok {
		t.Error("Expected no upstream body in the result")
	}
	if called {
		t.Error("Upstream from header should not be contacted")
	}
}

func TestServer_WeatherWithoutKey(t *testing.T) {
	h := newTestServer(t, DefaultConfig())
	sid := initialize(t, h)

	result := callTool(t, h, sid, nil, "current_weather", map[string]any{})
	if ok, _ := result.StructuredContent["ok"].(bool); ok {
		t.Fatalf("Expected ok=false without an API key, got %+v", result.StructuredContent)
	}
	if city := result.StructuredContent["city"]; city != "Seoul" {
		t.Errorf("Expected default city Seoul, got %v", city)
	}
}

func TestServer_DeleteSession(t *testing.T) {
	h := newTestServer(t, DefaultConfig())
	sid := initialize(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set(session.HeaderName, sid)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}

	w, _ = rpc(t, h, sid, nil, "ping", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	cfg := LoadConfig(lookupFrom(map[string]string{EnvPrecision: "6"}), zerolog.Nop())
	h := newTestServer(t, cfg)
	initialize(t, h)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /health, got %d", w.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if health["status"] != "ok" || health["precision"] != float64(6) || health["active_sessions"] != float64(1) {
		t.Errorf("Unexpected health payload %v", health)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, name := range []string{"arithmetic_precision_digits 6", "mcp_sessions_total", "http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected %q in metrics output", name)
		}
	}
}

func TestNew_RejectsNonPositiveDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = 0
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for zero cleanup interval")
	}
}
