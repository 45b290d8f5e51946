package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/go-globe-planner/internal/config"
	"github.com/you/go-globe-planner/internal/obs"
)

const (
	offerCurrency  = "INR"
	offerMaxResult = 2
)

// StatusError is returned when an upstream answers with an unexpected HTTP status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Body)
}

type Amadeus struct {
	host          string
	authPath      string
	locationsPath string
	searchPath    string
	client        *http.Client
	id            string
	secret        string
	timeout       time.Duration
	obs           obs.Observer
}

func NewAmadeus(cfg *config.Config, o obs.Observer) *Amadeus {
	return &Amadeus{host: strings.TrimRight(cfg.AmadeusURL, "/"),
		authPath:      "/v1/security/oauth2/token",
		locationsPath: "/v1/reference-data/locations",
		searchPath:    "/v2/shopping/flight-offers",
		id:            cfg.AmadeusClientID,
		secret:        cfg.AmadeusClientSecret,
		timeout:       cfg.UpstreamTimeout,
		client:        &http.Client{Timeout: cfg.UpstreamTimeout},
		obs:           o,
	}
}

func (a *Amadeus) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// FetchToken performs a client-credentials exchange. Only a 200 carrying a
// non-empty access_token counts as success.
func (a *Amadeus) FetchToken(ctx context.Context) (_ AccessToken, err error) {
	defer obs.Time(ctx, a.obs, "amadeus.token")(&err)

	if a.id == "" || a.secret == "" {
		return AccessToken{}, errors.New("amadeus credentials missing")
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", a.id)
	data.Set("client_secret", a.secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+a.authPath, strings.NewReader(data.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("amadeus token: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return AccessToken{}, transportError("amadeus token", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, statusError("amadeus token", resp)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return AccessToken{}, fmt.Errorf("amadeus token: decode: %w", err)
	}
	if tr.AccessToken == "" {
		return AccessToken{}, errors.New("amadeus token: empty access_token")
	}

	return AccessToken{
		Value:  tr.AccessToken,
		Expiry: time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

type locationEntry struct {
	SubType  string `json:"subType"`
	IATACode string `json:"iataCode"`
}

// ResolveLocation looks up the IATA code for a free-text city name.
func (a *Amadeus) ResolveLocation(ctx context.Context, city, token string) (_ LocationCode, err error) {
	defer obs.Time(ctx, a.obs, "amadeus.locations")(&err)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := url.Parse(a.host + a.locationsPath)
	if err != nil {
		return LocationCode{}, fmt.Errorf("amadeus locations: %w", err)
	}
	q := u.Query()
	q.Set("keyword", city)
	q.Set("subType", "AIRPORT,CITY")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return LocationCode{}, fmt.Errorf("amadeus locations: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return LocationCode{}, transportError("amadeus locations", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return LocationCode{}, statusError("amadeus locations", resp)
	}

	var payload struct {
		Data []locationEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return LocationCode{}, fmt.Errorf("amadeus locations: decode: %w", err)
	}

	loc, ok := selectLocation(payload.Data)
	if !ok {
		return LocationCode{}, fmt.Errorf("amadeus locations %q: %w", city, ErrLocationNotFound)
	}
	return loc, nil
}

// selectLocation prefers the first airport, then the first city, then
// whatever first entry carries a code.
func selectLocation(entries []locationEntry) (LocationCode, bool) {
	for _, kind := range []LocationKind{KindAirport, KindCity} {
		for _, e := range entries {
			if LocationKind(e.SubType) == kind && e.IATACode != "" {
				return LocationCode{Code: e.IATACode, Kind: kind}, true
			}
		}
	}
	for _, e := range entries {
		if e.IATACode != "" {
			return LocationCode{Code: e.IATACode, Kind: LocationKind(e.SubType)}, true
		}
	}
	return LocationCode{}, false
}

// SearchOffers queries flight offers priced in INR, at most two of them.
func (a *Amadeus) SearchOffers(ctx context.Context, sq OfferQuery, token string) (_ RawSearchResponse, err error) {
	defer obs.Time(ctx, a.obs, "amadeus.offers")(&err)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	adults := sq.Adults
	if adults <= 0 {
		adults = 1
	}

	u, err := url.Parse(a.host + a.searchPath)
	if err != nil {
		return RawSearchResponse{}, fmt.Errorf("amadeus search: %w", err)
	}
	q := u.Query()
	q.Set("originLocationCode", sq.Origin.Code)
	q.Set("destinationLocationCode", sq.Destination.Code)
	q.Set("departureDate", sq.DepartureDate)
	q.Set("adults", strconv.Itoa(adults))
	q.Set("currencyCode", offerCurrency)
	q.Set("max", strconv.Itoa(offerMaxResult))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return RawSearchResponse{}, fmt.Errorf("amadeus search: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return RawSearchResponse{}, transportError("amadeus search", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RawSearchResponse{}, statusError("amadeus search", resp)
	}

	var payload RawSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RawSearchResponse{}, fmt.Errorf("amadeus search: decode: %w", err)
	}
	return payload, nil
}

// transportError drops the request URL from a client error. Query strings can
// carry credentials.
func transportError(op string, err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
