// Package geocode resolves free-text addresses to coordinates through a
// Nominatim-compatible search API, optionally fronted by a Redis cache.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-eventmap/internal/shared/apperr"
	"backend-eventmap/internal/shared/geo"

	"github.com/pkg/errors"
)

// Resolver turns an address into a coordinate. Implementations return an
// error wrapping apperr.ErrGeocode when the address has no match.
type Resolver interface {
	Resolve(ctx context.Context, address string) (geo.Point, error)
}

type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (n *Nominatim) Resolve(ctx context.Context, address string) (geo.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Point{}, apperr.Validation("missing required fields", "address")
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("q", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "%q: %v", address, err)
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	res, err := n.client.Do(req)
	if err != nil {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "%q: %v", address, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "%q: geocoder answered %d", address, res.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(res.Body).Decode(&results); err != nil {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "%q: decode response: %v", address, err)
	}
	if len(results) == 0 {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "%q: no result", address)
	}
	return parseResult(results[0])
}

func parseResult(r searchResult) (geo.Point, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "bad latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return geo.Point{}, errors.Wrapf(apperr.ErrGeocode, "bad longitude %q", r.Lon)
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, errors.Wrap(apperr.ErrGeocode, fmt.Sprintf("coordinate out of range (%v, %v)", lat, lng))
	}
	return p, nil
}
