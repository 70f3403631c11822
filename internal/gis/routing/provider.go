package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"supmap-navigation/internal/navigation"
)

// RouteCache is the offline route store. Get reports absent entries (missing
// or expired) with found=false and a nil error.
type RouteCache interface {
	Get(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, bool, error)
	Put(ctx context.Context, req navigation.RouteRequest, route *navigation.Route) error
	Clear(ctx context.Context) error
}

type DirectionsClient interface {
	Directions(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error)
}

type Connectivity interface {
	Online() bool
}

// ConnectivityFlag is a Connectivity toggled by the caller. The zero value is online.
type ConnectivityFlag struct {
	offline atomic.Bool
}

func (c *ConnectivityFlag) Online() bool {
	return !c.offline.Load()
}

func (c *ConnectivityFlag) SetOnline(online bool) {
	c.offline.Store(!online)
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// Provider fetches routes from the directions client and falls back to the
// offline cache. Every successful fetch is written through to the cache.
type Provider struct {
	client       DirectionsClient
	cache        RouteCache
	connectivity Connectivity
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewProvider(client DirectionsClient, cache RouteCache, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		client:       client,
		cache:        cache,
		connectivity: alwaysOnline{},
		validate:     validator.New(),
		logger:       logger,
	}
}

// WithConnectivity returns a provider sharing p's client and cache that uses
// c to decide whether to go to the network.
func (p *Provider) WithConnectivity(c Connectivity) *Provider {
	clone := *p
	clone.connectivity = c
	return &clone
}

func (p *Provider) Validate(req navigation.RouteRequest) error {
	if err := p.validate.Struct(req.Normalized()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (p *Provider) FetchRoute(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	req = req.Normalized()
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	if !p.connectivity.Online() {
		p.logger.Debug("offline, serving route from cache", "key", req.Key())
		return p.fromCache(ctx, req)
	}

	route, err := p.client.Directions(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			p.logger.Warn("directions request failed, falling back to cache", "key", req.Key(), "error", err)
			return p.fromCache(ctx, req)
		}
		if errors.Is(err, ErrUpstreamRoute) {
			p.logger.Warn("directions provider returned no usable route", "key", req.Key(), "error", err)
		}
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, req, route); err != nil {
			p.logger.Warn("failed to cache route", "key", req.Key(), "error", err)
		}
	}
	return route, nil
}

func (p *Provider) fromCache(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	if p.cache == nil {
		return nil, ErrNoRouteAvailable
	}
	route, found, err := p.cache.Get(ctx, req)
	if err != nil {
		p.logger.Warn("failed to read route cache", "key", req.Key(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoRouteAvailable, err)
	}
	if !found {
		return nil, ErrNoRouteAvailable
	}
	return route, nil
}
