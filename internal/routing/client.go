// Package routing projects an ordered list of coordinates onto a road or
// footpath route using an OSRM-compatible routing service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"backend-eventmap/internal/shared/apperr"
	"backend-eventmap/internal/shared/geo"

	"github.com/pkg/errors"
)

const (
	ModeDriving = "driving"
	ModeFoot    = "foot"
)

// Route is the projection returned to the map client. Geometry follows the
// GeoJSON LineString layout, coordinates as [lng, lat].
type Route struct {
	Mode      string   `json:"mode"`
	DistanceM float64  `json:"distance_m"`
	DurationS float64  `json:"duration_s"`
	Geometry  Geometry `json:"geometry"`
}

type Geometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

type Projector interface {
	Route(ctx context.Context, points []geo.Point, mode string) (Route, error)
}

type Client struct {
	baseURL string
	client  *http.Client
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64  `json:"distance"`
		Duration float64  `json:"duration"`
		Geometry Geometry `json:"geometry"`
	} `json:"routes"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ValidMode reports whether mode is a supported travel profile.
func ValidMode(mode string) bool {
	return mode == ModeDriving || mode == ModeFoot
}

func (c *Client) Route(ctx context.Context, points []geo.Point, mode string) (Route, error) {
	if !ValidMode(mode) {
		return Route{}, apperr.Validation(fmt.Sprintf("unsupported travel mode %q", mode), "mode")
	}
	if len(points) < 2 {
		return Route{}, errors.Wrapf(apperr.ErrInsufficientPoints, "got %d", len(points))
	}

	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson", c.baseURL, mode, encodeCoordinates(points))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, apperr.Upstream(err, "router")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return Route{}, apperr.Upstream(err, "router")
	}
	defer res.Body.Close()

	var body osrmResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Route{}, apperr.Upstream(fmt.Errorf("status %d: decode response: %w", res.StatusCode, err), "router")
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return Route{}, apperr.Upstream(fmt.Errorf("status %d: code %q: %s", res.StatusCode, body.Code, body.Message), "router")
	}

	best := body.Routes[0]
	return Route{
		Mode:      mode,
		DistanceM: best.Distance,
		DurationS: best.Duration,
		Geometry:  best.Geometry,
	}, nil
}

func encodeCoordinates(points []geo.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}
