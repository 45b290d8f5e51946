package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/you/go-globe-planner/internal/auth"
	"github.com/you/go-globe-planner/internal/service"
	"github.com/you/go-globe-planner/internal/users"
)

const maxCountryLen = 100

var budgetPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

type Planner interface {
	Plan(ctx context.Context, req service.Request) service.SearchResult
}

// parsePlanRequest reads the search form from the query string or a
// form-encoded body and validates it.
func parsePlanRequest(r *http.Request, now time.Time) (service.Request, error) {
	req := service.Request{
		SourceCity:      strings.TrimSpace(r.FormValue("source_city")),
		DestinationCity: strings.TrimSpace(r.FormValue("destination_city")),
		DepartureDate:   strings.TrimSpace(r.FormValue("departure_date")),
	}
	if a := strings.TrimSpace(r.FormValue("adults")); a != "" {
		n, err := strconv.Atoi(a)
		if err != nil {
			return req, fmt.Errorf("%w: adults must be a number", service.ErrInvalidRequest)
		}
		req.Adults = n
	}
	if err := req.Validate(now); err != nil {
		return req, err
	}
	return req, nil
}

func PlanHandler(p Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		req, err := parsePlanRequest(r, time.Now())
		if err != nil {
			writeError(w, r, service.HTTPStatus(err), err.Error())
			return
		}
		if id, ok := auth.CurrentUser(r.Context()); ok {
			log.Printf("plan user=%s source=%q destination=%q date=%q", id.Username, req.SourceCity, req.DestinationCity, req.DepartureDate)
		}
		writeJSON(w, r, http.StatusOK, p.Plan(r.Context(), req))
	}
}

type profileUpdate struct {
	Country             *string `json:"country"`
	Budget              *string `json:"budget"`
	PreferredActivities *string `json:"preferred_activities"`
}

func ProfileHandler(store users.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.CurrentUser(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "not logged in")
			return
		}

		switch r.Method {
		case http.MethodGet:
			p, err := store.Profile(r.Context(), id.UserID)
			if err != nil {
				profileError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, p)

		case http.MethodPut:
			var upd profileUpdate
			if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
				writeError(w, r, http.StatusBadRequest, "bad json")
				return
			}
			p, err := store.Profile(r.Context(), id.UserID)
			if err != nil {
				profileError(w, r, err)
				return
			}
			if err := applyProfileUpdate(&p, upd); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			if err := store.SaveProfile(r.Context(), p); err != nil {
				profileError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, p)

		default:
			w.Header().Set("Allow", "GET, PUT")
			writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func applyProfileUpdate(p *users.Profile, upd profileUpdate) error {
	if upd.Country != nil {
		c := strings.TrimSpace(*upd.Country)
		if len(c) > maxCountryLen {
			return fmt.Errorf("country must be at most %d characters", maxCountryLen)
		}
		p.Country = c
	}
	if upd.Budget != nil {
		b := strings.TrimSpace(*upd.Budget)
		switch {
		case b == "":
			p.Budget = nil
		case !budgetPattern.MatchString(b):
			return errors.New("budget must be a decimal with at most 8 integer digits and 2 decimal places")
		default:
			p.Budget = &b
		}
	}
	if upd.PreferredActivities != nil {
		p.PreferredActivities = strings.TrimSpace(*upd.PreferredActivities)
	}
	return nil
}

func profileError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, users.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "profile not found")
		return
	}
	log.Printf("profile: %v", err)
	writeError(w, r, http.StatusInternalServerError, "profile unavailable")
}

// Health provides a minimal liveness check endpoint.
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
