package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"supmap-navigation/internal/gis/routing"
	"supmap-navigation/internal/navigation"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteRouteCache persists routes in a local SQLite file so they survive
// restarts. It uses a single connection and serializes writes.
type SQLiteRouteCache struct {
	conn      *sql.DB
	writeMu   sync.Mutex
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func OpenSQLite(ctx context.Context, path string, logger *slog.Logger, opts ...Option) (*SQLiteRouteCache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := newOptions(opts)

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open route cache: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping route cache: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create route cache schema: %w", err)
	}

	logger.Info("route cache opened", "backend", "sqlite", "path", path, "retention", o.retention.String())
	return &SQLiteRouteCache{
		conn:      conn,
		retention: o.retention,
		now:       o.now,
		logger:    logger,
	}, nil
}

func (c *SQLiteRouteCache) Close() error {
	return c.conn.Close()
}

func (c *SQLiteRouteCache) Get(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, bool, error) {
	key := req.Key()

	var (
		routeJSON string
		createdAt int64
	)
	err := c.conn.QueryRowContext(ctx,
		"SELECT route, created_at FROM route_cache WHERE key = ?", key,
	).Scan(&routeJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading %q: %w", routing.ErrCacheUnavailable, key, err)
	}

	if c.now().Sub(time.UnixMilli(createdAt)) > c.retention {
		c.writeMu.Lock()
		_, err := c.conn.ExecContext(ctx, "DELETE FROM route_cache WHERE key = ? AND created_at = ?", key, createdAt)
		c.writeMu.Unlock()
		if err != nil {
			c.logger.Warn("failed to evict expired route", "key", key, "error", err)
		}
		return nil, false, nil
	}

	var route navigation.Route
	if err := json.Unmarshal([]byte(routeJSON), &route); err != nil {
		return nil, false, fmt.Errorf("%w: decoding %q: %w", routing.ErrCacheUnavailable, key, err)
	}
	return &route, true, nil
}

func (c *SQLiteRouteCache) Put(ctx context.Context, req navigation.RouteRequest, route *navigation.Route) error {
	req = req.Normalized()

	routeJSON, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("%w: marshalling route: %w", routing.ErrCacheUnavailable, err)
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: marshalling request: %w", routing.ErrCacheUnavailable, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err = c.conn.ExecContext(ctx, `
		INSERT INTO route_cache (key, route, request, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			route = excluded.route,
			request = excluded.request,
			created_at = excluded.created_at`,
		req.Key(), string(routeJSON), string(reqJSON), c.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: writing %q: %w", routing.ErrCacheUnavailable, req.Key(), err)
	}
	return nil
}

func (c *SQLiteRouteCache) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.ExecContext(ctx, "DELETE FROM route_cache"); err != nil {
		return fmt.Errorf("%w: clearing: %w", routing.ErrCacheUnavailable, err)
	}
	return nil
}

// Entries lists every stored entry, expired ones included, oldest first.
func (c *SQLiteRouteCache) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := c.conn.QueryContext(ctx, "SELECT route, request, created_at FROM route_cache ORDER BY created_at, key")
	if err != nil {
		return nil, fmt.Errorf("%w: listing: %w", routing.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			routeJSON, reqJSON string
			createdAt          int64
		)
		if err := rows.Scan(&routeJSON, &reqJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scanning: %w", routing.ErrCacheUnavailable, err)
		}
		e := Entry{CreatedAt: time.UnixMilli(createdAt)}
		if err := json.Unmarshal([]byte(routeJSON), &e.Route); err != nil {
			return nil, fmt.Errorf("%w: decoding route: %w", routing.ErrCacheUnavailable, err)
		}
		if err := json.Unmarshal([]byte(reqJSON), &e.Request); err != nil {
			return nil, fmt.Errorf("%w: decoding request: %w", routing.ErrCacheUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing: %w", routing.ErrCacheUnavailable, err)
	}
	return entries, nil
}

// Purge deletes every entry older than the retention window and returns how
// many were removed.
func (c *SQLiteRouteCache) Purge(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention).UnixMilli()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	result, err := c.conn.ExecContext(ctx, "DELETE FROM route_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: purging: %w", routing.ErrCacheUnavailable, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// StartPeriodicPurge runs Purge every interval until ctx is done.
func (c *SQLiteRouteCache) StartPeriodicPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := c.Purge(ctx)
			if err != nil {
				c.logger.Warn("route cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				c.logger.Info("purged expired routes", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
