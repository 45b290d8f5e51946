package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrLocationNotFound = errors.New("location not found")

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type AccessToken struct {
	Value  string
	Expiry time.Time
}

type LocationKind string

const (
	KindAirport LocationKind = "AIRPORT"
	KindCity    LocationKind = "CITY"
)

// LocationCode is an IATA airport or city code.
type LocationCode struct {
	Code string       `json:"code"`
	Kind LocationKind `json:"kind"`
}

type OfferQuery struct {
	Origin        LocationCode
	Destination   LocationCode
	DepartureDate string // YYYY-MM-DD
	Adults        int
}

// RawSearchResponse keeps each offer undecoded; callers pick out the fields they need.
type RawSearchResponse struct {
	Data []json.RawMessage `json:"data"`
}

type Geocoder interface {
	Geocode(ctx context.Context, city string) (Coordinates, bool)
}

type TokenProvider interface {
	FetchToken(ctx context.Context) (AccessToken, error)
}

type AirportResolver interface {
	ResolveLocation(ctx context.Context, city, token string) (LocationCode, error)
}

type FlightSearcher interface {
	SearchOffers(ctx context.Context, q OfferQuery, token string) (RawSearchResponse, error)
}
