package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"mcp-tools-go/internal/tools"
)

const currentBody = `{"main":{"temp":21.5,"humidity":40,"pressure":1012},"weather":[{"description":"clear sky"}],"name":"Seoul"}`

const forecastBody = `{"list":[
	{"dt_txt":"2024-01-01 00:00:00","main":{"temp":1.5},"weather":[{"description":"snow"}]},
	{"dt_txt":"2024-01-01 03:00:00","main":{"temp":2.5},"weather":[{"description":"cloudy"}]},
	{"dt_txt":"2024-01-01 06:00:00","main":{"temp":3.5},"weather":[]}
]}`

type recordedRequest struct {
	path  string
	query map[string]string
}

func newUpstream(t *testing.T, status int, body string, seen *recordedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.path = r.URL.Path
			seen.query = map[string]string{}
			for k := range r.URL.Query() {
				seen.query[k] = r.URL.Query().Get(k)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL, apiKey string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = apiKey
	return NewClient(cfg, nil, zerolog.Nop())
}

func TestCurrentTool_Success(t *testing.T) {
	var seen recordedRequest
	srv := newUpstream(t, http.StatusOK, currentBody, &seen)
	tool := NewCurrentTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{"city": "  Busan "}`))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	var res CurrentWeather
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}

	if !res.OK {
		t.Fatalf("Expected ok result, got message %q", res.Message)
	}
	if res.City != "Busan" {
		t.Errorf("Expected trimmed city Busan, got %q", res.City)
	}
	if res.Temp == nil || *res.Temp != 21.5 {
		t.Errorf("Expected temp 21.5, got %v", res.Temp)
	}
	if res.Description != "clear sky" {
		t.Errorf("Expected description 'clear sky', got %q", res.Description)
	}
	if len(res.Raw) == 0 {
		t.Error("Expected raw payload")
	}

	if seen.path != "/weather" {
		t.Errorf("Expected /weather, got %s", seen.path)
	}
	if seen.query["q"] != "Busan" || seen.query["units"] != "metric" || seen.query["appid"] != "secret" {
		t.Errorf("Unexpected query: %v", seen.query)
	}
}

func TestCurrentTool_DefaultCity(t *testing.T) {
	var seen recordedRequest
	srv := newUpstream(t, http.StatusOK, currentBody, &seen)
	tool := NewCurrentTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	var res CurrentWeather
	json.Unmarshal(raw, &res)
	if res.City != "Seoul" || seen.query["q"] != "Seoul" {
		t.Errorf("Expected default city Seoul, got %q (query %q)", res.City, seen.query["q"])
	}
}

func TestCurrentTool_MissingAPIKey(t *testing.T) {
	tool := NewCurrentTool(newTestClient("http://127.0.0.1:0", ""), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Expected soft failure, got error: %v", err)
	}

	var res CurrentWeather
	json.Unmarshal(raw, &res)
	if res.OK {
		t.Error("Expected ok=false without API key")
	}
	if res.Message == "" {
		t.Error("Expected failure message")
	}
}

func TestCurrentTool_UpstreamError(t *testing.T) {
	srv := newUpstream(t, http.StatusUnauthorized, `{"message":"bad key"}`, nil)
	tool := NewCurrentTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{"city":"Seoul"}`))
	if err != nil {
		t.Fatalf("Expected soft failure, got error: %v", err)
	}

	var res CurrentWeather
	json.Unmarshal(raw, &res)
	if res.OK {
		t.Error("Expected ok=false on upstream error")
	}
}

func TestCurrentTool_InvalidArguments(t *testing.T) {
	tool := NewCurrentTool(newTestClient("http://127.0.0.1:0", "secret"), zerolog.Nop())

	_, err := tool.Call(context.Background(), json.RawMessage(`{"city": 12}`))
	var toolErr *tools.Error
	if !errors.As(err, &toolErr) || toolErr.Code != tools.ErrInvalidArguments {
		t.Errorf("Expected invalid_arguments error, got %v", err)
	}
}

func TestForecastTool_TruncatesItems(t *testing.T) {
	var seen recordedRequest
	srv := newUpstream(t, http.StatusOK, forecastBody, &seen)
	tool := NewForecastTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{"city":"Seoul","cnt":2}`))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	var res Forecast
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !res.OK {
		t.Fatalf("Expected ok result, got %q", res.Message)
	}
	if len(res.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(res.Items))
	}
	if res.Items[0].Time != "2024-01-01 00:00:00" || res.Items[0].Description != "snow" {
		t.Errorf("Unexpected first item: %+v", res.Items[0])
	}
	if seen.path != "/forecast" || seen.query["cnt"] != "2" {
		t.Errorf("Unexpected request: %s %v", seen.path, seen.query)
	}
}

func TestForecastTool_DefaultCount(t *testing.T) {
	var seen recordedRequest
	srv := newUpstream(t, http.StatusOK, forecastBody, &seen)
	tool := NewForecastTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	var res Forecast
	json.Unmarshal(raw, &res)
	if len(res.Items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(res.Items))
	}
	if res.Items[2].Description != "" {
		t.Errorf("Expected empty description for item without conditions, got %q", res.Items[2].Description)
	}
	if seen.query["cnt"] != "3" {
		t.Errorf("Expected cnt=3, got %q", seen.query["cnt"])
	}
}

func TestForecastTool_RejectsNonPositiveCount(t *testing.T) {
	tool := NewForecastTool(newTestClient("http://127.0.0.1:0", "secret"), zerolog.Nop())

	_, err := tool.Call(context.Background(), json.RawMessage(`{"cnt":0}`))
	var toolErr *tools.Error
	if !errors.As(err, &toolErr) || toolErr.Code != tools.ErrInvalidArguments {
		t.Errorf("Expected invalid_arguments error, got %v", err)
	}
}

func TestForecastTool_RejectsOversizedCount(t *testing.T) {
	var seen recordedRequest
	srv := newUpstream(t, http.StatusOK, forecastBody, &seen)
	tool := NewForecastTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	for _, args := range []string{`{"cnt":41}`, `{"cnt":9000000000000000000}`} {
		_, err := tool.Call(context.Background(), json.RawMessage(args))
		var toolErr *tools.Error
		if !errors.As(err, &toolErr) || toolErr.Code != tools.ErrInvalidArguments {
			t.Errorf("%s: expected invalid_arguments error, got %v", args, err)
		}
	}
	if seen.path != "" {
		t.Errorf("Upstream should not be called, got %s", seen.path)
	}
}

func TestForecastTool_MaxCountWithShortList(t *testing.T) {
	srv := newUpstream(t, http.StatusOK, forecastBody, nil)
	tool := NewForecastTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{"cnt":40}`))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var res Forecast
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if len(res.Items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(res.Items))
	}
}

func TestForecastTool_EmptyListKeepsItems(t *testing.T) {
	srv := newUpstream(t, http.StatusOK, `{"list":[]}`, nil)
	tool := NewForecastTool(newTestClient(srv.URL, "secret"), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(string(raw), `"items":[]`) {
		t.Errorf("Expected empty items array, got %s", raw)
	}
}

func TestForecastTool_FailureOmitsItems(t *testing.T) {
	tool := NewForecastTool(newTestClient("http://127.0.0.1:0", ""), zerolog.Nop())

	raw, err := tool.Call(context.Background(), json.RawMessage(`{"city":"Seoul"}`))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var res map[string]any
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if res["ok"] != false || res["message"] == "" {
		t.Errorf("Expected failure with message, got %v", res)
	}
	if _, ok := res["items"]; ok {
		t.Errorf("Failure should not carry items, got %v", res)
	}
}

func TestClient_ContextOverrides(t *testing.T) {
	var seen recordedRequest
	srv := newUpstream(t, http.StatusOK, currentBody, &seen)
	client := newTestClient("http://127.0.0.1:0", "")

	ctx := context.WithValue(context.Background(), ContextKeyAPIURL, srv.URL)
	ctx = context.WithValue(ctx, ContextKeyAPIKey, "from-header")

	if _, err := client.Fetch(ctx, "weather", nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if seen.query["appid"] != "from-header" {
		t.Errorf("Expected header API key, got %q", seen.query["appid"])
	}
}

func TestContextMiddleware(t *testing.T) {
	var gotURL, gotKey string
	handler := ContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL, _ = r.Context().Value(ContextKeyAPIURL).(string)
		gotKey, _ = r.Context().Value(ContextKeyAPIKey).(string)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderAPIURL, "http://weather.local")
	req.Header.Set(HeaderAPIKey, "k")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotURL != "http://weather.local" || gotKey != "k" {
		t.Errorf("Expected overrides in context, got %q %q", gotURL, gotKey)
	}
}
