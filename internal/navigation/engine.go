package navigation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRerouteFailed = errors.New("reroute failed")
	ErrNotTraveling  = errors.New("session is not traveling")
)

// Config holds the engine thresholds. The defaults are not tuned per travel
// profile.
type Config struct {
	// OffRouteThreshold is the distance in meters from the current step
	// geometry above which the traveler is off route.
	OffRouteThreshold float64
	// OffRouteCheckInterval throttles off-route evaluation.
	OffRouteCheckInterval time.Duration
	// StepAdvanceThreshold is the distance in meters to the end of the current
	// step below which the next step becomes current.
	StepAdvanceThreshold float64
	// AnnouncementThresholds are the distances before a maneuver at which a
	// voice announcement fires, at most once each per step.
	AnnouncementThresholds []float64
}

func DefaultConfig() Config {
	return Config{
		OffRouteThreshold:      50,
		OffRouteCheckInterval:  10 * time.Second,
		StepAdvanceThreshold:   30,
		AnnouncementThresholds: []float64{500, 200, 50},
	}
}

// RouteFetcher computes routes. Rerouting always goes through it.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, req RouteRequest) (*Route, error)
}

// Speaker is the speech output capability.
type Speaker interface {
	Announce(text string) error
	Cancel()
}

// PositionSource delivers live position samples until ctx is done, then
// closes the channel.
type PositionSource interface {
	Subscribe(ctx context.Context) (<-chan Position, error)
}

type Observer func(Snapshot)

// Callbacks are optional hooks invoked after the matching state transition.
type Callbacks struct {
	OnStepChange    func(stepIndex int, step Step)
	OnRouteReplaced func(route *Route)
	OnRerouteFailed func(err error)
}

// Snapshot is a read-only view of a session. Route must not be mutated.
type Snapshot struct {
	SessionID        string `json:"session_id"`
	Route            *Route `json:"route,omitempty"`
	StepIndex        int    `json:"current_step_index"`
	Traveling        bool   `json:"is_traveling"`
	Rerouting        bool   `json:"is_rerouting"`
	LastPosition     *Point `json:"last_position,omitempty"`
	LastRerouteError string `json:"last_reroute_error,omitempty"`
}

type nopSpeaker struct{}

func (nopSpeaker) Announce(string) error { return nil }
func (nopSpeaker) Cancel()               {}
