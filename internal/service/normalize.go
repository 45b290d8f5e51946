package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/you/go-globe-planner/internal/providers"
)

type FlightOffer struct {
	Airline          string `json:"airline"`
	FlightNumber     string `json:"flight_number"`
	DepartureTime    string `json:"departure_time"`
	ArrivalTime      string `json:"arrival_time"`
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	Duration         string `json:"duration"` // ISO8601 e.g. PT2H10M
	DurationMin      int    `json:"duration_min"`
	Price            string `json:"price"`
	Currency         string `json:"currency"`
	Stops            int    `json:"stops"`
}

type rawOffer struct {
	Price struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"price"`
	Itineraries []struct {
		Duration string `json:"duration"`
		Segments []struct {
			CarrierCode string `json:"carrierCode"`
			Number      string `json:"number"`
			Departure   struct {
				IATACode string `json:"iataCode"`
				At       string `json:"at"`
			} `json:"departure"`
			Arrival struct {
				IATACode string `json:"iataCode"`
				At       string `json:"at"`
			} `json:"arrival"`
		} `json:"segments"`
	} `json:"itineraries"`
}

// NormalizeOffers flattens each offer using the first segment of its first
// itinerary. Stops counts every segment of that itinerary even though only the
// first one is surfaced. Entries without an itinerary or a segment are skipped.
func NormalizeOffers(raw providers.RawSearchResponse) []FlightOffer {
	out := make([]FlightOffer, 0, len(raw.Data))
	for _, msg := range raw.Data {
		var o rawOffer
		if err := json.Unmarshal(msg, &o); err != nil {
			continue
		}
		if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
			continue
		}
		it := o.Itineraries[0]
		seg := it.Segments[0]
		out = append(out, FlightOffer{
			Airline:          seg.CarrierCode,
			FlightNumber:     seg.CarrierCode + seg.Number,
			DepartureTime:    seg.Departure.At,
			ArrivalTime:      seg.Arrival.At,
			DepartureAirport: seg.Departure.IATACode,
			ArrivalAirport:   seg.Arrival.IATACode,
			Duration:         it.Duration,
			DurationMin:      parseISODurationMinutes(it.Duration),
			Price:            o.Price.Total,
			Currency:         o.Price.Currency,
			Stops:            len(it.Segments) - 1,
		})
	}
	return out
}

func parseISODurationMinutes(s string) int {
	// very small parser for formats like PT2H10M, PT150M, P1DT2H
	s = strings.TrimPrefix(s, "P")
	total := 0
	var num strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			num.WriteRune(r)
			continue
		}
		v, _ := strconv.Atoi(num.String())
		num.Reset()
		switch r {
		case 'D':
			total += v * 24 * 60
		case 'H':
			total += v * 60
		case 'M':
			total += v
		}
	}
	return total
}
