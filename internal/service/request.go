package service

import (
	"fmt"
	"strings"
	"time"
)

const maxAdults = 9

type Request struct {
	SourceCity      string `json:"source_city"`
	DestinationCity string `json:"destination_city"`
	DepartureDate   string `json:"departure_date,omitempty"` // YYYY-MM-DD, empty means tomorrow
	Adults          int    `json:"adults,omitempty"`
}

// Validate checks the inbound form before it reaches the planner. Cities must
// be present, a given date must be well formed and not in the past, and adults
// (when given) must be between 1 and 9.
func (r Request) Validate(now time.Time) error {
	if strings.TrimSpace(r.SourceCity) == "" || strings.TrimSpace(r.DestinationCity) == "" {
		return fmt.Errorf("%w: source_city and destination_city are required", ErrInvalidRequest)
	}
	if r.DepartureDate != "" {
		d, err := time.ParseInLocation(dateLayout, r.DepartureDate, now.Location())
		if err != nil {
			return fmt.Errorf("%w: departure_date must be YYYY-MM-DD", ErrInvalidRequest)
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if d.Before(today) {
			return fmt.Errorf("%w: departure_date %s is in the past", ErrInvalidRequest, r.DepartureDate)
		}
	}
	if r.Adults < 0 || r.Adults > maxAdults {
		return fmt.Errorf("%w: adults must be between 1 and %d", ErrInvalidRequest, maxAdults)
	}
	return nil
}
