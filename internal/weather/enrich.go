package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"tripweaver/internal/itinerary"
)

// Suitability thresholds for outdoor activity.
const (
	minOutdoorTempF = 40.0
	maxOutdoorTempF = 95.0
	maxOutdoorWind  = 20.0
	maxOutdoorRain  = 50 // precipitation probability percent, exclusive
)

// badDescriptions always disqualify a day regardless of the numeric values.
var badDescriptions = map[string]bool{
	"thunderstorm": true,
	"heavy rain":   true,
	"snow":         true,
	"heavy snow":   true,
}

// outdoorKeywords flag activities that need decent weather.
var outdoorKeywords = []string{
	"outdoor", "park", "garden", "walk", "hike", "beach", "bike",
	"picnic", "trail", "boat", "market",
}

// Alternative suggestion pools, keyed by condition type.
var (
	indoorPool = []string{
		"Visit a local museum",
		"Explore a covered market hall",
		"Take a cooking class",
		"Tour a historic cathedral or palace interior",
		"Spend the afternoon in a gallery",
	}
	heatPool = []string{
		"Move the activity to early morning",
		"Visit an air-conditioned museum instead",
		"Find a rooftop pool or spa",
		"Take a long lunch somewhere shaded",
	}
	rainPool = []string{
		"Visit an aquarium or science center",
		"Catch a matinee at a local theater",
		"Do an indoor food tour",
		"Browse bookshops and cafés instead",
	}
)

// ForecastSource is the forecast lookup needed by the Enricher. Satisfied by
// ForecastClient and by the Redis-backed cached source.
type ForecastSource interface {
	Hourly(ctx context.Context, coords Coordinates, date string) (*Forecast, error)
}

// placeResolver is the interface satisfied by Geocoder.
type placeResolver interface {
	Lookup(ctx context.Context, place string) (Coordinates, error)
}

// Enricher attaches weather context to itinerary days and proposes indoor
// alternatives for outdoor activities on unsuitable days.
type Enricher struct {
	geocoder  placeResolver
	forecasts ForecastSource
	log       *slog.Logger
}

// NewEnricher constructs an Enricher.
func NewEnricher(geocoder *Geocoder, forecasts ForecastSource, log *slog.Logger) *Enricher {
	return &Enricher{geocoder: geocoder, forecasts: forecasts, log: log}
}

// NewEnricherWithResolver constructs an Enricher with an injectable geocoder (for tests).
func NewEnricherWithResolver(geocoder placeResolver, forecasts ForecastSource, log *slog.Logger) *Enricher {
	return &Enricher{geocoder: geocoder, forecasts: forecasts, log: log}
}

// Enrich looks up a forecast for every day and attaches it. Day lookups run
// in parallel; any per-day failure is isolated: the day keeps a nil weather
// context and enrichment of the remaining days continues. A failed geocode
// skips enrichment entirely, which is likewise not an error.
func (e *Enricher) Enrich(ctx context.Context, days []itinerary.TripDay, destination string) []itinerary.TripDay {
	out := make([]itinerary.TripDay, len(days))
	copy(out, days)

	coords, err := e.geocoder.Lookup(ctx, destination)
	if err != nil {
		e.log.Warn("geocode failed, skipping weather enrichment", "destination", destination, "err", err)
		return out
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i := range out {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("weather enrichment panicked", "date", out[i].Date, "recover", r)
					err = fmt.Errorf("weather enrichment panicked: %v", r)
				}
			}()
			f, fetchErr := e.forecasts.Hourly(gCtx, coords, out[i].Date)
			if fetchErr != nil {
				e.log.Warn("forecast fetch failed", "destination", destination, "date", out[i].Date, "err", fetchErr)
				return nil
			}
			applyForecast(&out[i], f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Error("weather enrichment aborted", "destination", destination, "err", err)
	}

	return out
}

// applyForecast attaches the forecast to the day and, when conditions are
// unsuitable, collects alternatives for its outdoor activities.
func applyForecast(day *itinerary.TripDay, f *Forecast) {
	suitable, warning := classify(f)
	day.Weather = &itinerary.WeatherContext{
		Description:        f.Description,
		TemperatureF:       f.TemperatureF,
		Humidity:           f.Humidity,
		WindSpeedMPH:       f.WindSpeedMPH,
		PrecipitationPct:   f.PrecipitationPct,
		SuitableForOutdoor: suitable,
		Warning:            warning,
	}
	if suitable {
		day.AlternativeActivities = nil
		return
	}

	pool := poolFor(f)
	var suggestions []string
	for _, slot := range day.TimeSlots {
		if isOutdoor(slot.Activity) {
			suggestions = append(suggestions, pool...)
		}
	}
	day.AlternativeActivities = lo.Uniq(suggestions)
}

// classify applies the fixed outdoor-suitability thresholds.
func classify(f *Forecast) (bool, string) {
	switch {
	case badDescriptions[strings.ToLower(f.Description)]:
		return false, fmt.Sprintf("Forecast calls for %s", f.Description)
	case f.PrecipitationPct >= maxOutdoorRain:
		return false, fmt.Sprintf("%d%% chance of precipitation", f.PrecipitationPct)
	case f.TemperatureF > maxOutdoorTempF:
		return false, fmt.Sprintf("Extreme heat expected (%.0f°F)", f.TemperatureF)
	case f.TemperatureF < minOutdoorTempF:
		return false, fmt.Sprintf("Very cold conditions expected (%.0f°F)", f.TemperatureF)
	case f.WindSpeedMPH > maxOutdoorWind:
		return false, fmt.Sprintf("High winds expected (%.0f mph)", f.WindSpeedMPH)
	}
	return true, ""
}

// poolFor picks the alternative pool matching the disqualifying condition.
func poolFor(f *Forecast) []string {
	desc := strings.ToLower(f.Description)
	switch {
	case f.PrecipitationPct >= maxOutdoorRain,
		strings.Contains(desc, "rain"),
		strings.Contains(desc, "snow"),
		strings.Contains(desc, "thunderstorm"),
		strings.Contains(desc, "drizzle"),
		strings.Contains(desc, "showers"):
		return rainPool
	case f.TemperatureF > maxOutdoorTempF:
		return heatPool
	}
	return indoorPool
}

func isOutdoor(activity string) bool {
	lower := strings.ToLower(activity)
	for _, kw := range outdoorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
