package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// threeStepRoute runs east along the equator, north, then east again.
// Each step is about 1.1 km long.
func threeStepRoute() *Route {
	return &Route{
		Geometry: []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}, {Lat: 0.01, Lon: 0.01}, {Lat: 0.01, Lon: 0.02}},
		Distance: 3336,
		Duration: 240,
		Steps: []Step{
			{
				Instruction: "Drive east on Rue A",
				Distance:    1112,
				Duration:    80,
				Maneuver:    "depart",
				Name:        "Rue A",
				Geometry:    []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}},
			},
			{
				Instruction: "Turn left onto Rue B",
				Distance:    1112,
				Duration:    80,
				Maneuver:    "turn",
				Name:        "Rue B",
				Geometry:    []Point{{Lat: 0, Lon: 0.01}, {Lat: 0.01, Lon: 0.01}},
			},
			{
				Instruction: "Turn right onto Rue C",
				Distance:    1112,
				Duration:    80,
				Maneuver:    "turn",
				Name:        "Rue C",
				Geometry:    []Point{{Lat: 0.01, Lon: 0.01}, {Lat: 0.01, Lon: 0.02}},
			},
		},
	}
}

func replacementRoute() *Route {
	return &Route{
		Geometry: []Point{{Lat: 0.0107, Lon: 0.015}, {Lat: 0.0107, Lon: 0.02}},
		Distance: 556,
		Duration: 40,
		Steps: []Step{
			{
				Instruction: "Drive east",
				Distance:    556,
				Duration:    40,
				Maneuver:    "depart",
				Geometry:    []Point{{Lat: 0.0107, Lon: 0.015}, {Lat: 0.0107, Lon: 0.02}},
			},
			{
				Instruction: "You have arrived",
				Maneuver:    "arrive",
				Geometry:    []Point{{Lat: 0.0107, Lon: 0.02}, {Lat: 0.0107, Lon: 0.02}},
			},
		},
	}
}

func pos(lat, lon float64) Position {
	return Position{Lat: lat, Lon: lon}
}

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) FetchRoute(ctx context.Context, req RouteRequest) (*Route, error) {
	args := m.Called(ctx, req)
	route, _ := args.Get(0).(*Route)
	return route, args.Error(1)
}

type recordingSpeaker struct {
	mu        sync.Mutex
	announced []string
	cancels   int
}

func (s *recordingSpeaker) Announce(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announced = append(s.announced, text)
	return nil
}

func (s *recordingSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *recordingSpeaker) Announced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.announced...)
}

func (s *recordingSpeaker) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) Observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func (r *snapshotRecorder) Last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

// stepIndices lists step indexes of traveling snapshots, collapsing repeats.
func (r *snapshotRecorder) stepIndices() []int {
	var out []int
	for _, s := range r.Snapshots() {
		if !s.Traveling {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == s.StepIndex {
			continue
		}
		out = append(out, s.StepIndex)
	}
	return out
}
