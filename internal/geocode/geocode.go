// Package geocode resolves free-text addresses to coordinates through
// OpenCage and measures the distance between two points.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EarthRadiusKm is the mean earth radius.
const EarthRadiusKm = 6371.0088

var ErrNoResults = errors.New("no results found for the given address")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type OpenCageClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenCageClient(config Config, logger *slog.Logger) *OpenCageClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &OpenCageClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "opencage"),
	}
}

type openCageResponse struct {
	Results []struct {
		Geometry Point `json:"geometry"`
	} `json:"results"`
}

func (c *OpenCageClient) Geocode(ctx context.Context, address string) (Point, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("key", c.apiKey)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/v1/json?"+q.Encode(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("geocoding API error: status %d", resp.StatusCode)
	}

	var body openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Point{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Results) == 0 {
		return Point{}, ErrNoResults
	}

	p := body.Results[0].Geometry
	c.logger.Debug("address geocoded", "lat", p.Lat, "lng", p.Lng)
	return p, nil
}
