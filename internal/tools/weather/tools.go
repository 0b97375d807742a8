package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"mcp-tools-go/internal/tools"
)

// DefaultForecastCount is the number of forecast items returned when cnt is omitted.
const DefaultForecastCount = 3

// MaxForecastCount is the largest cnt accepted; the 5 day / 3 hour forecast
// never has more entries.
const MaxForecastCount = 40

// CurrentArgs represents the arguments for current_weather.
type CurrentArgs struct {
	City string `json:"city"`
}

// ForecastArgs represents the arguments for simple_forecast.
type ForecastArgs struct {
	City string `json:"city"`
	Cnt  *int   `json:"cnt"`
}

// CurrentWeather is the current_weather result. Failed lookups are reported
// as a Failure.
type CurrentWeather struct {
	OK          bool            `json:"ok"`
	City        string          `json:"city"`
	Message     string          `json:"message,omitempty"`
	Temp        *float64        `json:"temp,omitempty"`
	Humidity    *float64        `json:"humidity,omitempty"`
	Pressure    *float64        `json:"pressure,omitempty"`
	Description string          `json:"description,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// ForecastItem is one entry of a forecast.
type ForecastItem struct {
	Time        string   `json:"time"`
	Temp        *float64 `json:"temp"`
	Description string   `json:"description"`
}

// Forecast is the simple_forecast result. Items is always present on success,
// even when empty.
type Forecast struct {
	OK      bool            `json:"ok"`
	City    string          `json:"city"`
	Message string          `json:"message,omitempty"`
	Items   []ForecastItem  `json:"items"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Failure is the result of a lookup that did not reach usable data.
type Failure struct {
	OK      bool   `json:"ok"`
	City    string `json:"city"`
	Message string `json:"message"`
}

// upstream payload shapes; only the extracted fields are declared.
type conditions struct {
	Description string `json:"description"`
}

type mainBlock struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
	Pressure *float64 `json:"pressure"`
}

type currentPayload struct {
	Main    mainBlock    `json:"main"`
	Weather []conditions `json:"weather"`
}

type forecastPayload struct {
	List []struct {
		DtTxt   string       `json:"dt_txt"`
		Main    mainBlock    `json:"main"`
		Weather []conditions `json:"weather"`
	} `json:"list"`
}

func firstDescription(c []conditions) string {
	if len(c) == 0 {
		return ""
	}
	return c[0].Description
}

var weatherAnnotations = &mcp.ToolAnnotations{
	ReadOnlyHint:  true,
	OpenWorldHint: tools.Bool(true),
}

// CurrentTool implements current_weather.
type CurrentTool struct {
	*tools.DefaultTool
	client *Client
	logger zerolog.Logger
}

// NewCurrentTool creates the current_weather tool.
func NewCurrentTool(client *Client, logger zerolog.Logger) *CurrentTool {
	schema := tools.ObjectSchema(map[string]any{
		"city": map[string]any{
			"type":        "string",
			"description": "City name; defaults to the configured city",
		},
	})
	return &CurrentTool{
		DefaultTool: tools.NewDefaultTool("current_weather",
			"Returns the current weather for a city (default: WEATHER_CITY_DEFAULT).", schema).
			WithAnnotations(weatherAnnotations),
		client: client,
		logger: logger.With().Str("component", "weather").Str("tool", "current_weather").Logger(),
	}
}

// Call executes current_weather.
func (t *CurrentTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params CurrentArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	city := t.client.City(params.City)
	t.logger.Info().
		Str("city", city).
		Str("units", t.client.Units()).
		Msg("current_weather")

	raw, err := t.client.Fetch(ctx, "weather", url.Values{
		"q":     {city},
		"units": {t.client.Units()},
	})
	if err != nil {
		t.logger.Warn().Err(err).Str("city", city).Msg("Weather lookup failed")
		return json.Marshal(Failure{OK: false, City: city, Message: err.Error()})
	}

	var payload currentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return json.Marshal(Failure{OK: false, City: city, Message: err.Error()})
	}

	return json.Marshal(CurrentWeather{
		OK:          true,
		City:        city,
		Temp:        payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		Description: firstDescription(payload.Weather),
		Raw:         raw,
	})
}

// ForecastTool implements simple_forecast.
type ForecastTool struct {
	*tools.DefaultTool
	client *Client
	logger zerolog.Logger
}

// NewForecastTool creates the simple_forecast tool.
func NewForecastTool(client *Client, logger zerolog.Logger) *ForecastTool {
	schema := tools.ObjectSchema(map[string]any{
		"city": map[string]any{
			"type":        "string",
			"description": "City name; defaults to the configured city",
		},
		"cnt": map[string]any{
			"type":        "integer",
			"description": "Number of forecast items",
			"default":     DefaultForecastCount,
			"minimum":     1,
			"maximum":     MaxForecastCount,
		},
	})
	return &ForecastTool{
		DefaultTool: tools.NewDefaultTool("simple_forecast",
			"Returns a short forecast list for a city. cnt is the number of items (default 3).", schema).
			WithAnnotations(weatherAnnotations),
		client: client,
		logger: logger.With().Str("component", "weather").Str("tool", "simple_forecast").Logger(),
	}
}

// Call executes simple_forecast.
func (t *ForecastTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params ForecastArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	cnt := DefaultForecastCount
	if params.Cnt != nil {
		cnt = *params.Cnt
	}
	if cnt < 1 || cnt > MaxForecastCount {
		return nil, tools.InvalidArguments("cnt must be between 1 and %d", MaxForecastCount)
	}

	city := t.client.City(params.City)
	t.logger.Info().
		Str("city", city).
		Str("units", t.client.Units()).
		Int("cnt", cnt).
		Msg("simple_forecast")

	raw, err := t.client.Fetch(ctx, "forecast", url.Values{
		"q":     {city},
		"units": {t.client.Units()},
		"cnt":   {strconv.Itoa(cnt)},
	})
	if err != nil {
		t.logger.Warn().Err(err).Str("city", city).Msg("Forecast lookup failed")
		return json.Marshal(Failure{OK: false, City: city, Message: err.Error()})
	}

	var payload forecastPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return json.Marshal(Failure{OK: false, City: city, Message: err.Error()})
	}

	items := make([]ForecastItem, 0, min(cnt, len(payload.List)))
	for _, it := range payload.List {
		if len(items) == cnt {
			break
		}
		items = append(items, ForecastItem{
			Time:        it.DtTxt,
			Temp:        it.Main.Temp,
			Description: firstDescription(it.Weather),
		})
	}

	return json.Marshal(Forecast{OK: true, City: city, Items: items, Raw: raw})
}

// decodeArgs unmarshals args into v; empty or null args leave v untouched.
func decodeArgs(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return tools.InvalidArguments("invalid arguments: %v", err)
	}
	return nil
}
