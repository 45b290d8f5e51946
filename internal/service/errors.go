package service

import (
	"context"
	"errors"
	"net"
	"net/http"
)

var (
	ErrGeocodeUnavailable = errors.New("geocode unavailable")
	ErrAuthFailure        = errors.New("flight api authentication failed")
	ErrAirportLookup      = errors.New("airport lookup failed")
	ErrNoFlightsFound     = errors.New("no flights found")
	ErrUpstreamTransport  = errors.New("upstream transport error")
	ErrInvalidRequest     = errors.New("invalid request")
)

const (
	KindGeocodeUnavailable = "geocode-unavailable"
	KindAuth               = "auth"
	KindAirportLookup      = "airport-lookup"
	KindNoResults          = "no-results"
	KindTransport          = "transport"
	KindInvalidRequest     = "invalid-request"
	KindInternal           = "internal"
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrAuthFailure):
		return KindAuth

	case errors.Is(err, ErrAirportLookup):
		return KindAirportLookup

	case errors.Is(err, ErrNoFlightsFound):
		return KindNoResults

	case errors.Is(err, ErrGeocodeUnavailable):
		return KindGeocodeUnavailable

	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest

	case errors.Is(err, ErrUpstreamTransport), IsTransport(err):
		return KindTransport

	default:
		return KindInternal
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, ErrAuthFailure),
		errors.Is(err, ErrAirportLookup),
		errors.Is(err, ErrUpstreamTransport):
		return http.StatusBadGateway

	case errors.Is(err, ErrNoFlightsFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// IsTransport reports whether err came from the network or a deadline rather
// than from an upstream answer.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamTransport) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Message is the user-facing text for a failure kind.
func Message(kind string) string {
	switch kind {
	case KindGeocodeUnavailable:
		return "Could not find coordinates for that city."
	case KindAuth:
		return "Could not authenticate with the flight provider. Please try again later."
	case KindAirportLookup:
		return "Could not find an airport for the given city."
	case KindNoResults:
		return "No flights found for this route and date."
	case KindTransport:
		return "The flight provider could not be reached. Please try again later."
	case KindInvalidRequest:
		return "The search request is invalid."
	default:
		return "Something went wrong while searching for flights."
	}
}
