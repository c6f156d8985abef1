package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const httpTimeout = 10 * time.Second

// newHTTPClient returns an http.Client with a 10-second timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// doGet performs a GET request and decodes the JSON response into dst.
func doGet(ctx context.Context, client *http.Client, rawURL, userAgent string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	return nil
}

// Coordinates is a geocoded place.
type Coordinates struct {
	Lat float64
	Lon float64
}

const nominatimDefaultURL = "https://nominatim.openstreetmap.org/search"

// Nominatim requires an identifying User-Agent on every request.
const nominatimUserAgent = "tripweaver/1.0"

// Geocoder resolves place names to coordinates via Nominatim. Results are
// held in an in-process cache so repeated enrichment of the same destination
// does not hit the API again.
type Geocoder struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
}

// NewGeocoder constructs a Geocoder against the production Nominatim URL
// with a 24-hour result cache.
func NewGeocoder() *Geocoder {
	return NewGeocoderWithURL(nominatimDefaultURL)
}

// NewGeocoderWithURL constructs a Geocoder pointing at a custom base URL (for tests).
func NewGeocoderWithURL(baseURL string) *Geocoder {
	return &Geocoder{
		baseURL: baseURL,
		client:  newHTTPClient(),
		cache:   gocache.New(24*time.Hour, time.Hour),
	}
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Lookup resolves a place name to coordinates.
func (g *Geocoder) Lookup(ctx context.Context, place string) (Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(place))
	if v, ok := g.cache.Get(key); ok {
		return v.(Coordinates), nil
	}

	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "json")
	params.Set("limit", "1")

	var results []nominatimResult
	if err := doGet(ctx, g.client, g.baseURL+"?"+params.Encode(), nominatimUserAgent, &results); err != nil {
		return Coordinates{}, fmt.Errorf("geocoding %s: %w", place, err)
	}
	if len(results) == 0 {
		return Coordinates{}, fmt.Errorf("geocoding %s: no results", place)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoding %s: bad latitude %q", place, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocoding %s: bad longitude %q", place, results[0].Lon)
	}

	coords := Coordinates{Lat: lat, Lon: lon}
	g.cache.Set(key, coords, gocache.DefaultExpiration)
	return coords, nil
}
