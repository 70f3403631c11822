package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"supmap-navigation/internal/navigation"
)

// DefaultRetention is how long a cached route stays usable.
const DefaultRetention = 7 * 24 * time.Hour

// Entry is one cached route with the request that produced it.
type Entry struct {
	Route     *navigation.Route       `json:"route"`
	Request   navigation.RouteRequest `json:"request"`
	CreatedAt time.Time               `json:"created_at"`
}

func (e Entry) expired(now time.Time, retention time.Duration) bool {
	return now.Sub(e.CreatedAt) > retention
}

type options struct {
	retention time.Duration
	now       func() time.Time
}

type Option func(*options)

// WithRetention overrides DefaultRetention. Non-positive values are ignored.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{retention: DefaultRetention, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func marshalEntry(e Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshalling route entry: %w", err)
	}
	return data, nil
}

func unmarshalEntry(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshalling route entry: %w", err)
	}
	return e, nil
}
