package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/you/go-globe-planner/internal/providers"
)

type GeocoderMock struct {
	coords map[string]providers.Coordinates
}

func (g GeocoderMock) Geocode(_ context.Context, city string) (providers.Coordinates, bool) {
	c, ok := g.coords[city]
	return c, ok
}

type TokenMock struct {
	value           string
	ttl             time.Duration
	errorOutMessage *string
	err             error
	callCount       *int32
}

func (m TokenMock) FetchToken(context.Context) (providers.AccessToken, error) {
	if m.callCount != nil {
		atomic.AddInt32(m.callCount, 1)
	}
	if m.err != nil {
		return providers.AccessToken{}, m.err
	}
	if m.errorOutMessage != nil {
		return providers.AccessToken{}, errors.New(*m.errorOutMessage)
	}
	ttl := m.ttl
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return providers.AccessToken{Value: m.value, Expiry: time.Now().Add(ttl)}, nil
}

type ResolverMock struct {
	codes map[string]providers.LocationCode
	err   error
	mu    sync.Mutex
	seen  []string
}

func (m *ResolverMock) ResolveLocation(_ context.Context, city, token string) (providers.LocationCode, error) {
	m.mu.Lock()
	m.seen = append(m.seen, token)
	m.mu.Unlock()
	if m.err != nil {
		return providers.LocationCode{}, m.err
	}
	c, ok := m.codes[city]
	if !ok {
		return providers.LocationCode{}, providers.ErrLocationNotFound
	}
	return c, nil
}

type SearcherMock struct {
	raw       providers.RawSearchResponse
	err       error
	lastQuery providers.OfferQuery
	callCount int32
}

func (m *SearcherMock) SearchOffers(_ context.Context, q providers.OfferQuery, _ string) (providers.RawSearchResponse, error) {
	atomic.AddInt32(&m.callCount, 1)
	m.lastQuery = q
	if m.err != nil {
		return providers.RawSearchResponse{}, m.err
	}
	return m.raw, nil
}
