package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/go-globe-planner/internal/obs"
	"github.com/you/go-globe-planner/internal/providers"
)

type stageRecorder struct {
	mu     sync.Mutex
	events []obs.Event
}

func (r *stageRecorder) Observe(_ context.Context, ev obs.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// started returns the planner stages in the order they were entered.
func (r *stageRecorder) started() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Stage
	for _, ev := range r.events {
		switch Stage(ev.Op) {
		case StageStart, StageDone, StageFailed:
			out = append(out, Stage(ev.Op))
		default:
			if ev.Status == obs.StatusStart {
				out = append(out, Stage(ev.Op))
			}
		}
	}
	return out
}

var (
	delhi  = providers.Coordinates{Latitude: 28.6139, Longitude: 77.209}
	mumbai = providers.Coordinates{Latitude: 19.076, Longitude: 72.8777}
)

func indiaGeocoder() GeocoderMock {
	return GeocoderMock{coords: map[string]providers.Coordinates{"Delhi": delhi, "Mumbai": mumbai}}
}

func indiaResolver() *ResolverMock {
	return &ResolverMock{codes: map[string]providers.LocationCode{
		"Delhi":  {Code: "DEL", Kind: providers.KindAirport},
		"Mumbai": {Code: "BOM", Kind: providers.KindAirport},
	}}
}

func newTestPlanner(tokens providers.TokenProvider, resolver providers.AirportResolver, searcher providers.FlightSearcher, rec obs.Observer) *Planner {
	return NewPlanner(Dependencies{
		Geocoder: indiaGeocoder(),
		Tokens:   tokens,
		Resolver: resolver,
		Searcher: searcher,
		Observer: rec,
		Timeout:  5 * time.Second,
	})
}

func TestPlan_DefaultsDateToTomorrow(t *testing.T) {
	searcher := &SearcherMock{raw: rawOf(directOffer)}
	p := newTestPlanner(TokenMock{value: "tok"}, indiaResolver(), searcher, nil)
	p.now = func() time.Time { return time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC) }

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai"})

	require.Equal(t, "2027-01-01", res.DepartureDate)
	require.Equal(t, "2027-01-01", searcher.lastQuery.DepartureDate)
	require.Equal(t, "DEL", searcher.lastQuery.Origin.Code)
	require.Equal(t, "BOM", searcher.lastQuery.Destination.Code)
}

func TestPlan_TokenFailure(t *testing.T) {
	rec := &stageRecorder{}
	searcher := &SearcherMock{raw: rawOf(directOffer)}
	tokErr := &providers.StatusError{Op: "amadeus token", Code: http.StatusUnauthorized}
	p := newTestPlanner(TokenMock{err: tokErr}, indiaResolver(), searcher, rec)

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai", DepartureDate: "2026-11-01"})

	require.NotNil(t, res.Error)
	require.Equal(t, KindAuth, res.Error.Kind)
	require.Equal(t, Message(KindAuth), res.Error.Message)
	require.False(t, res.Error.Transport)
	require.Empty(t, res.Offers)
	require.NotNil(t, res.Offers)
	require.Equal(t, StageFailed, res.Stage)
	require.Zero(t, atomic.LoadInt32(&searcher.callCount))

	// coordinates survive a flight-branch failure
	require.Equal(t, &delhi, res.SourceCoords)
	require.Equal(t, &mumbai, res.DestCoords)

	require.Equal(t, []Stage{StageStart, StageGeocoding, StageAuthenticating, StageFailed}, rec.started())

	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	require.Equal(t, string(StageFailed), last.Op)
	require.Equal(t, KindAuth, last.Kind)
}

func TestPlan_AirportLookupReportsSides(t *testing.T) {
	resolver := &ResolverMock{codes: map[string]providers.LocationCode{
		"Delhi": {Code: "DEL", Kind: providers.KindAirport},
	}}
	searcher := &SearcherMock{raw: rawOf(directOffer)}
	p := newTestPlanner(TokenMock{value: "tok"}, resolver, searcher, nil)

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Atlantis"})

	require.NotNil(t, res.Error)
	require.Equal(t, KindAirportLookup, res.Error.Kind)
	require.Equal(t, []string{SideDestination}, res.Error.Sides)
	require.Empty(t, res.Offers)
	require.Nil(t, res.DestCoords)
	require.Zero(t, atomic.LoadInt32(&searcher.callCount))

	res = p.Plan(context.Background(), Request{SourceCity: "Nowhere", DestinationCity: "Atlantis"})
	require.Equal(t, []string{SideSource, SideDestination}, res.Error.Sides)
}

func TestPlan_NoFlights(t *testing.T) {
	var empty providers.RawSearchResponse
	require.NoError(t, json.Unmarshal([]byte(`{"data":[]}`), &empty))

	rec := &stageRecorder{}
	p := newTestPlanner(TokenMock{value: "tok"}, indiaResolver(), &SearcherMock{raw: empty}, rec)

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai"})

	require.NotNil(t, res.Error)
	require.Equal(t, KindNoResults, res.Error.Kind)
	require.Empty(t, res.Offers)
	require.Equal(t, []Stage{
		StageStart, StageGeocoding, StageAuthenticating, StageResolvingAirports, StageSearchingFlights, StageFailed,
	}, rec.started())
}

func TestPlan_SearchErrorIsNoResults(t *testing.T) {
	p := newTestPlanner(TokenMock{value: "tok"}, indiaResolver(),
		&SearcherMock{err: context.DeadlineExceeded}, nil)

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai"})

	require.Equal(t, KindNoResults, res.Error.Kind)
	require.True(t, res.Error.Transport)
}

func TestPlan_FullSuccess(t *testing.T) {
	rec := &stageRecorder{}
	p := newTestPlanner(TokenMock{value: "tok"}, indiaResolver(), &SearcherMock{raw: rawOf(directOffer)}, rec)

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai", DepartureDate: "2026-11-01"})

	require.Nil(t, res.Error)
	require.Equal(t, StageDone, res.Stage)
	require.Equal(t, "2026-11-01", res.DepartureDate)
	require.Len(t, res.Offers, 1)

	o := res.Offers[0]
	assert.Equal(t, 0, o.Stops)
	assert.NotEmpty(t, o.Airline)
	assert.NotEmpty(t, o.FlightNumber)
	assert.NotEmpty(t, o.DepartureTime)
	assert.NotEmpty(t, o.ArrivalTime)
	assert.NotEmpty(t, o.Duration)
	assert.NotEmpty(t, o.Price)
	assert.NotEmpty(t, o.Currency)

	require.Equal(t, []Stage{
		StageStart, StageGeocoding, StageAuthenticating, StageResolvingAirports,
		StageSearchingFlights, StageNormalizing, StageDone,
	}, rec.started())
}

func TestPlan_GeocodeMissDoesNotHalt(t *testing.T) {
	p := newTestPlanner(TokenMock{value: "tok"}, &ResolverMock{codes: map[string]providers.LocationCode{
		"Gotham": {Code: "GTM", Kind: providers.KindCity},
		"Mumbai": {Code: "BOM", Kind: providers.KindAirport},
	}}, &SearcherMock{raw: rawOf(directOffer)}, nil)

	res := p.Plan(context.Background(), Request{SourceCity: "Gotham", DestinationCity: "Mumbai"})

	require.Nil(t, res.SourceCoords)
	require.Equal(t, &mumbai, res.DestCoords)
	require.Nil(t, res.Error)
	require.Len(t, res.Offers, 1)
}

func TestPlan_TokenFetchedEveryPlanWithoutCache(t *testing.T) {
	var calls int32
	p := newTestPlanner(TokenMock{value: "tok", callCount: &calls}, indiaResolver(), &SearcherMock{raw: rawOf(directOffer)}, nil)

	for i := 0; i < 3; i++ {
		p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai"})
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPlan_TokenCacheReusesToken(t *testing.T) {
	var calls int32
	resolver := indiaResolver()
	p := NewPlanner(Dependencies{
		Geocoder:   indiaGeocoder(),
		Tokens:     TokenMock{value: "cached", callCount: &calls},
		Resolver:   resolver,
		Searcher:   &SearcherMock{raw: rawOf(directOffer)},
		TokenCache: NewTokenCache(),
	})

	for i := 0; i < 3; i++ {
		res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai"})
		require.Nil(t, res.Error)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, tok := range resolver.seen {
		require.Equal(t, "cached", tok)
	}
}

func TestPlan_RejectedTokenIsDropped(t *testing.T) {
	var calls int32
	cache := NewTokenCache()
	p := NewPlanner(Dependencies{
		Geocoder:   indiaGeocoder(),
		Tokens:     TokenMock{value: "tok", callCount: &calls},
		Resolver:   &ResolverMock{err: &providers.StatusError{Op: "amadeus locations", Code: http.StatusUnauthorized}},
		Searcher:   &SearcherMock{},
		TokenCache: cache,
	})

	res := p.Plan(context.Background(), Request{SourceCity: "Delhi", DestinationCity: "Mumbai"})
	require.Equal(t, KindAirportLookup, res.Error.Kind)

	_, ok := cache.Get()
	require.False(t, ok)
}
