package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/go-globe-planner/internal/config"
	"github.com/you/go-globe-planner/internal/obs"
)

var errNoGeocodeResults = errors.New("no geocode results")

type geocodeResponse struct {
	Results []struct {
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// OpenCage resolves city names to coordinates using the OpenCage geocoding API.
// Lookups are never cached.
type OpenCage struct {
	host    string
	path    string
	key     string
	client  *http.Client
	timeout time.Duration
	obs     obs.Observer
}

func NewOpenCage(cfg *config.Config, o obs.Observer) *OpenCage {
	return &OpenCage{host: strings.TrimRight(cfg.OpenCageURL, "/"),
		path:    "/geocode/v1/json",
		key:     cfg.OpenCageKey,
		client:  &http.Client{Timeout: cfg.UpstreamTimeout},
		timeout: cfg.UpstreamTimeout,
		obs:     o,
	}
}

// Geocode reports false on any failure; the reason only reaches the observer.
func (g *OpenCage) Geocode(ctx context.Context, city string) (Coordinates, bool) {
	c, err := g.lookup(ctx, city)
	if err != nil {
		return Coordinates{}, false
	}
	return c, true
}

func (g *OpenCage) lookup(ctx context.Context, city string) (_ Coordinates, err error) {
	defer obs.Time(ctx, g.obs, "opencage.geocode")(&err)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	u, err := url.Parse(g.host + g.path)
	if err != nil {
		return Coordinates{}, fmt.Errorf("opencage: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("key", g.key)
	q.Set("limit", "1")
	q.Set("no_annotations", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("opencage: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Coordinates{}, transportError("opencage", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, statusError("opencage", resp)
	}

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Coordinates{}, fmt.Errorf("opencage: decode: %w", err)
	}
	if len(decoded.Results) == 0 {
		return Coordinates{}, fmt.Errorf("opencage %q: %w", city, errNoGeocodeResults)
	}

	geo := decoded.Results[0].Geometry
	return Coordinates{Latitude: geo.Lat, Longitude: geo.Lng}, nil
}
