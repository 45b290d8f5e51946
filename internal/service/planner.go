package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/you/go-globe-planner/internal/obs"
	"github.com/you/go-globe-planner/internal/providers"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

type Stage string

const (
	StageStart             Stage = "START"
	StageGeocoding         Stage = "GEOCODING"
	StageAuthenticating    Stage = "AUTHENTICATING"
	StageResolvingAirports Stage = "RESOLVING_AIRPORTS"
	StageSearchingFlights  Stage = "SEARCHING_FLIGHTS"
	StageNormalizing       Stage = "NORMALIZING"
	StageDone              Stage = "DONE"
	StageFailed            Stage = "FAILED"
)

const (
	SideSource      = "source"
	SideDestination = "destination"
)

type ErrorReport struct {
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Sides     []string `json:"sides,omitempty"`
	Transport bool     `json:"transport,omitempty"`
}

// SearchResult is handed to presentation as is. Error and Offers are mutually
// exclusive: a failed plan always carries an empty offer list.
type SearchResult struct {
	SourceCity      string                 `json:"source_city"`
	DestinationCity string                 `json:"destination_city"`
	DepartureDate   string                 `json:"departure_date"`
	SourceCoords    *providers.Coordinates `json:"source_coords"`
	DestCoords      *providers.Coordinates `json:"dest_coords"`
	Offers          []FlightOffer          `json:"offers"`
	Error           *ErrorReport           `json:"error"`
	Stage           Stage                  `json:"-"`
}

type Dependencies struct {
	Geocoder providers.Geocoder
	Tokens   providers.TokenProvider
	Resolver providers.AirportResolver
	Searcher providers.FlightSearcher
	// TokenCache is optional; without it every plan fetches a fresh token.
	TokenCache *TokenCache
	Observer   obs.Observer
	Timeout    time.Duration
}

type Planner struct {
	geocoder providers.Geocoder
	tokens   providers.TokenProvider
	resolver providers.AirportResolver
	searcher providers.FlightSearcher
	cache    *TokenCache
	obs      obs.Observer
	timeout  time.Duration
	now      func() time.Time
}

func NewPlanner(dep Dependencies) *Planner {
	o := dep.Observer
	if o == nil {
		o = obs.Nop{}
	}
	return &Planner{
		geocoder: dep.Geocoder,
		tokens:   dep.Tokens,
		resolver: dep.Resolver,
		searcher: dep.Searcher,
		cache:    dep.TokenCache,
		obs:      o,
		timeout:  dep.Timeout,
		now:      time.Now,
	}
}

// DepartureDate returns date unchanged, or tomorrow's date when it is empty.
func (p *Planner) DepartureDate(date string) string {
	if strings.TrimSpace(date) != "" {
		return date
	}
	return p.now().AddDate(0, 0, 1).Format(dateLayout)
}

// Plan geocodes both cities and, independently, looks up flights between them.
// Geocoding failures only blank the coordinates; any flight-branch failure ends
// the plan with an ErrorReport.
func (p *Planner) Plan(ctx context.Context, req Request) SearchResult {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := SearchResult{
		SourceCity:      req.SourceCity,
		DestinationCity: req.DestinationCity,
		DepartureDate:   p.DepartureDate(req.DepartureDate),
		Offers:          []FlightOffer{},
		Stage:           StageStart,
	}
	obs.Emit(ctx, p.obs, obs.Event{Op: string(StageStart), Status: obs.StatusOK})

	// The token does not depend on geocoding, so fetch it while geocoding runs.
	var tokGroup errgroup.Group
	var tok string
	tokGroup.Go(func() (err error) {
		tok, err = p.token(ctx)
		return err
	})

	p.geocode(ctx, req, &res)

	res.Stage = StageAuthenticating
	done := obs.Time(ctx, p.obs, string(StageAuthenticating))
	tokErr := tokGroup.Wait()
	done(&tokErr)
	if tokErr != nil {
		return p.fail(ctx, res, KindAuth, tokErr, nil)
	}

	res.Stage = StageResolvingAirports
	origin, dest, sides, err := p.resolve(ctx, req, tok)
	if err != nil {
		return p.fail(ctx, res, KindAirportLookup, err, sides)
	}

	res.Stage = StageSearchingFlights
	raw, err := p.search(ctx, providers.OfferQuery{
		Origin:        origin,
		Destination:   dest,
		DepartureDate: res.DepartureDate,
		Adults:        req.Adults,
	}, tok)
	if err != nil {
		return p.fail(ctx, res, KindNoResults, err, nil)
	}

	res.Stage = StageNormalizing
	done = obs.Time(ctx, p.obs, string(StageNormalizing))
	res.Offers = NormalizeOffers(raw)
	done(nil)

	res.Stage = StageDone
	obs.Emit(ctx, p.obs, obs.Event{Op: string(StageDone), Status: obs.StatusOK})
	return res
}

func (p *Planner) geocode(ctx context.Context, req Request, res *SearchResult) {
	res.Stage = StageGeocoding
	var err error
	defer obs.Time(ctx, p.obs, string(StageGeocoding))(&err)

	// A miss on one side must not cancel the other, so misses are collected
	// per side instead of through the group error.
	var src, dst *providers.Coordinates
	var g errgroup.Group
	g.Go(func() error {
		if c, ok := p.geocoder.Geocode(ctx, req.SourceCity); ok {
			src = &c
		}
		return nil
	})
	g.Go(func() error {
		if c, ok := p.geocoder.Geocode(ctx, req.DestinationCity); ok {
			dst = &c
		}
		return nil
	})
	g.Wait()

	res.SourceCoords, res.DestCoords = src, dst

	var missing []string
	if src == nil {
		missing = append(missing, SideSource)
	}
	if dst == nil {
		missing = append(missing, SideDestination)
	}
	if len(missing) > 0 {
		// reported to the observer only; the plan carries on
		err = fmt.Errorf("%w: %s", ErrGeocodeUnavailable, strings.Join(missing, ","))
	}
}

func (p *Planner) token(ctx context.Context) (string, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(); ok {
			return v, nil
		}
	}
	at, err := p.tokens.FetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	if p.cache != nil {
		p.cache.Put(at)
	}
	return at.Value, nil
}

func (p *Planner) resolve(ctx context.Context, req Request, tok string) (origin, dest providers.LocationCode, sides []string, err error) {
	defer obs.Time(ctx, p.obs, string(StageResolvingAirports))(&err)

	// Both lookups always run to completion so the report can name every
	// failing side; errors are kept per side rather than returned to the group.
	var srcErr, dstErr error
	var g errgroup.Group
	g.Go(func() error {
		origin, srcErr = p.resolver.ResolveLocation(ctx, req.SourceCity, tok)
		return nil
	})
	g.Go(func() error {
		dest, dstErr = p.resolver.ResolveLocation(ctx, req.DestinationCity, tok)
		return nil
	})
	g.Wait()

	if srcErr != nil {
		sides = append(sides, SideSource)
	}
	if dstErr != nil {
		sides = append(sides, SideDestination)
	}
	if len(sides) == 0 {
		return origin, dest, nil, nil
	}

	p.dropRejectedToken(srcErr, dstErr)
	return origin, dest, sides, fmt.Errorf("%w (%s): %w", ErrAirportLookup, strings.Join(sides, ","), errors.Join(srcErr, dstErr))
}

func (p *Planner) search(ctx context.Context, q providers.OfferQuery, tok string) (raw providers.RawSearchResponse, err error) {
	defer obs.Time(ctx, p.obs, string(StageSearchingFlights))(&err)

	raw, err = p.searcher.SearchOffers(ctx, q, tok)
	if err != nil {
		p.dropRejectedToken(err)
		return raw, fmt.Errorf("%w: %w", ErrNoFlightsFound, err)
	}
	if len(raw.Data) == 0 {
		return raw, fmt.Errorf("%w: %s -> %s on %s", ErrNoFlightsFound, q.Origin.Code, q.Destination.Code, q.DepartureDate)
	}
	return raw, nil
}

// dropRejectedToken forgets a cached token the upstream no longer accepts.
func (p *Planner) dropRejectedToken(errs ...error) {
	if p.cache == nil {
		return
	}
	for _, err := range errs {
		var se *providers.StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			p.cache.Invalidate()
			return
		}
	}
}

func (p *Planner) fail(ctx context.Context, res SearchResult, kind string, cause error, sides []string) SearchResult {
	obs.Emit(ctx, p.obs, obs.Event{Op: string(StageFailed), Status: obs.StatusFailed, Kind: kind, Err: cause.Error()})

	res.Stage = StageFailed
	res.Offers = []FlightOffer{}
	res.Error = &ErrorReport{
		Kind:      kind,
		Message:   Message(kind),
		Sides:     sides,
		Transport: IsTransport(cause),
	}
	return res
}
