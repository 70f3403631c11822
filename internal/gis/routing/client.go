package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"supmap-navigation/internal/navigation"
)

// Client talks to an OSRM/Mapbox style directions API:
// GET {baseURL}/{profile}/{lon,lat;lon,lat...}
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

type ClientOptions struct {
	Timeout     time.Duration
	AccessToken string
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 7 * time.Second,
	}
}

func NewClient(baseURL string, options ...ClientOptions) *Client {
	opts := DefaultClientOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: opts.AccessToken,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Directions fetches the first candidate route for req, with full resolution
// overview and step geometries.
func (c *Client) Directions(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	reqURL, err := c.directionsURL(req.Normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", ErrUpstreamRoute, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var directions DirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&directions); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrUpstreamRoute, err)
	}

	if directions.Code != "" && directions.Code != "Ok" {
		return nil, fmt.Errorf("%w: provider answered %q: %s", ErrUpstreamRoute, directions.Code, directions.Message)
	}
	if len(directions.Routes) == 0 {
		return nil, fmt.Errorf("%w: no route found", ErrUpstreamRoute)
	}

	route, err := directions.Routes[0].toNavigationRoute()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRoute, err)
	}
	return route, nil
}

func (c *Client) directionsURL(req navigation.RouteRequest) (string, error) {
	coords := req.Coordinates()
	parts := make([]string, len(coords))
	for i, p := range coords {
		parts[i] = strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}

	u, err := url.Parse(c.baseURL + "/" + string(req.Profile) + "/" + strings.Join(parts, ";"))
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("steps", "true")
	q.Set("overview", "full")
	q.Set("geometries", "polyline")
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
