package event

import (
	"strings"
	"time"

	"backend-eventmap/internal/shared/apperr"
	"backend-eventmap/internal/shared/geo"
)

const dateLayout = "2006-01-02"

// Event is a geo-located entry of a collection. Date is a calendar date
// formatted as 2006-01-02.
type Event struct {
	ID             int64   `json:"id"`
	CollectionName string  `json:"collection_name"`
	Title          string  `json:"title"`
	Type           string  `json:"type"`
	Date           string  `json:"date"`
	Description    string  `json:"description"`
	Address        string  `json:"address"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Position       int     `json:"position"`
	Favorite       bool    `json:"favorite"`
}

func (e Event) Point() geo.Point {
	return geo.Point{Lat: e.Latitude, Lng: e.Longitude}
}

// Input carries the writable fields of an event. Nil pointers mean "not
// supplied": coordinates are then geocoded, position is assigned or kept,
// favorite defaults to false on create and is kept on update.
type Input struct {
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Position    *int     `json:"position"`
	Favorite    *bool    `json:"favorite"`
}

type BulkStatus string

const (
	BulkCreated BulkStatus = "created"
	BulkFailed  BulkStatus = "failed"
	BulkSkipped BulkStatus = "skipped"
)

type BulkItem struct {
	Index  int        `json:"index"`
	Status BulkStatus `json:"status"`
	Event  *Event     `json:"event,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// BulkResult lists the outcome of every submitted item. Items before
// FailedIndex were committed; the item at FailedIndex and everything after it
// were not.
type BulkResult struct {
	Items       []BulkItem `json:"items"`
	Created     []Event    `json:"created"`
	FailedIndex *int       `json:"failed_index,omitempty"`
}

// prepared is an Input that passed validation and has a resolved coordinate.
type prepared struct {
	title       string
	typ         string
	date        time.Time
	description string
	address     string
	point       geo.Point
	position    *int
	favorite    *bool
}

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseDate accepts a date with or without a time of day and keeps only the
// calendar date.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func (in Input) validate() (prepared, error) {
	p := prepared{
		title:       strings.TrimSpace(in.Title),
		typ:         strings.TrimSpace(in.Type),
		description: in.Description,
		address:     strings.TrimSpace(in.Address),
		position:    in.Position,
		favorite:    in.Favorite,
	}
	date := strings.TrimSpace(in.Date)

	var missing []string
	if p.title == "" {
		missing = append(missing, "title")
	}
	if p.typ == "" {
		missing = append(missing, "type")
	}
	if date == "" {
		missing = append(missing, "date")
	}
	if p.address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return prepared{}, apperr.Validation("missing required fields", missing...)
	}

	d, ok := parseDate(date)
	if !ok {
		return prepared{}, apperr.Validation("malformed date "+date, "date")
	}
	p.date = d

	if in.Position != nil && *in.Position < 1 {
		return prepared{}, apperr.Validation("position must be positive", "position")
	}
	if in.Latitude != nil && in.Longitude != nil {
		p.point = geo.Point{Lat: *in.Latitude, Lng: *in.Longitude}
		if !p.point.Valid() {
			return prepared{}, apperr.Validation("coordinate out of range", "latitude", "longitude")
		}
	}
	return p, nil
}

func (in Input) hasCoordinate() bool {
	return in.Latitude != nil && in.Longitude != nil
}
