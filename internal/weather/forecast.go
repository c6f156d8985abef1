package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Forecast is the hourly sample picked for an itinerary day. Units match the
// suitability thresholds: Fahrenheit, mph, probability percent.
type Forecast struct {
	Description      string  `json:"description"`
	TemperatureF     float64 `json:"temperature_f"`
	Humidity         int     `json:"humidity"`
	WindSpeedMPH     float64 `json:"wind_speed_mph"`
	PrecipitationPct int     `json:"precipitation_probability"`
}

const openMeteoDefaultURL = "https://api.open-meteo.com/v1/forecast"

// ForecastClient fetches hourly forecasts from Open-Meteo (no API key).
type ForecastClient struct {
	baseURL string
	client  *http.Client
}

// NewForecastClient constructs a ForecastClient against the production URL.
func NewForecastClient() *ForecastClient {
	return NewForecastClientWithURL(openMeteoDefaultURL)
}

// NewForecastClientWithURL constructs a ForecastClient pointing at a custom base URL (for tests).
func NewForecastClientWithURL(baseURL string) *ForecastClient {
	return &ForecastClient{baseURL: baseURL, client: newHTTPClient()}
}

type openMeteoResponse struct {
	Hourly struct {
		Time                     []string  `json:"time"`
		Temperature2m            []float64 `json:"temperature_2m"`
		RelativeHumidity2m       []int     `json:"relative_humidity_2m"`
		PrecipitationProbability []int     `json:"precipitation_probability"`
		WeatherCode              []int     `json:"weather_code"`
		WindSpeed10m             []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// wmoDescriptions maps Open-Meteo WMO weather codes to readable text.
var wmoDescriptions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "drizzle",
	55: "dense drizzle",
	56: "freezing drizzle",
	57: "dense freezing drizzle",
	61: "light rain",
	63: "rain",
	65: "heavy rain",
	66: "freezing rain",
	67: "heavy freezing rain",
	71: "light snow",
	73: "snow",
	75: "heavy snow",
	77: "snow grains",
	80: "light showers",
	81: "showers",
	82: "violent showers",
	85: "snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with hail",
	99: "thunderstorm with heavy hail",
}

func describeCode(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("weather code %d", code)
}

// Hourly fetches the forecast for the given day and returns the first hourly
// sample at or after the day's starting timestamp. Units are requested as
// Fahrenheit / mph / percent so no conversion happens downstream.
func (c *ForecastClient) Hourly(ctx context.Context, coords Coordinates, date string) (*Forecast, error) {
	target, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("forecast for %q: bad date: %w", date, err)
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", coords.Lat))
	params.Set("longitude", fmt.Sprintf("%f", coords.Lon))
	params.Set("hourly", "temperature_2m,relative_humidity_2m,precipitation_probability,weather_code,wind_speed_10m")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("wind_speed_unit", "mph")
	params.Set("timezone", "auto")
	params.Set("start_date", date)
	params.Set("end_date", date)

	var raw openMeteoResponse
	if err := doGet(ctx, c.client, c.baseURL+"?"+params.Encode(), "", &raw); err != nil {
		return nil, fmt.Errorf("open-meteo fetch for %s: %w", date, err)
	}

	h := raw.Hourly
	for i, ts := range h.Time {
		sample, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil || sample.Before(target) {
			continue
		}
		f := &Forecast{}
		if i < len(h.Temperature2m) {
			f.TemperatureF = h.Temperature2m[i]
		}
		if i < len(h.RelativeHumidity2m) {
			f.Humidity = h.RelativeHumidity2m[i]
		}
		if i < len(h.PrecipitationProbability) {
			f.PrecipitationPct = h.PrecipitationProbability[i]
		}
		if i < len(h.WindSpeed10m) {
			f.WindSpeedMPH = h.WindSpeed10m[i]
		}
		if i < len(h.WeatherCode) {
			f.Description = describeCode(h.WeatherCode[i])
		}
		return f, nil
	}

	return nil, fmt.Errorf("open-meteo: no hourly samples for %s", date)
}
