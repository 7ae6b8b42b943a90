// Package domain contains shared value types used across modules.
package domain

import (
	"encoding/json"
	"fmt"
)

// Coordinates is an optional geographic position attached to a location.
type Coordinates struct {
	Latitude  float64 `json:"latitude" msgpack:"latitude"`
	Longitude float64 `json:"longitude" msgpack:"longitude"`
}

// Location identifies where a transaction or vendor operates.
// City is the market identity used for grouping; state and coordinates
// are informational.
type Location struct {
	City        string       `json:"city" msgpack:"city"`
	State       string       `json:"state,omitempty" msgpack:"state"`
	Coordinates *Coordinates `json:"coordinates,omitempty" msgpack:"coordinates"`
}

// NewLocation builds a validated Location. A location without a city is
// not usable as a market key.
func NewLocation(city, state string, coords *Coordinates) (Location, error) {
	if city == "" {
		return Location{}, fmt.Errorf("location requires a city")
	}
	return Location{City: city, State: state, Coordinates: coords}, nil
}

// Valid reports whether the location can serve as a market key.
func (l Location) Valid() bool {
	return l.City != ""
}

// ParseLocation decodes the JSON location shape used by the relational
// store ({"city","state","coordinates":{...}}). Returns nil for empty or
// NULL column values.
func ParseLocation(raw []byte) (*Location, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("failed to parse location: %w", err)
	}
	if !loc.Valid() {
		return nil, nil
	}
	return &loc, nil
}
