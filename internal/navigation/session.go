package navigation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"supmap-navigation/internal/gis"
)

type SessionOptions struct {
	ID        string
	Config    Config
	Router    RouteFetcher
	Speaker   Speaker
	Source    PositionSource
	Callbacks Callbacks
	Logger    *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Outcome describes what the engine did with one position sample.
type Outcome struct {
	Verdict      Verdict
	Rerouting    bool
	Advanced     bool
	StepIndex    int
	Announcement string
}

// Session is one active navigation. All state transitions happen under mu;
// observers and callbacks run outside of it, in transition order.
type Session struct {
	ID string

	cfg       Config
	router    RouteFetcher
	speaker   Speaker
	source    PositionSource
	callbacks Callbacks
	logger    *slog.Logger
	now       func() time.Time

	mu           sync.Mutex
	route        *Route
	routeGen     uint64
	stepIndex    int
	destination  *Point
	traveling    bool
	generation   uint64
	ctx          context.Context
	cancel       context.CancelFunc
	rerouting    bool
	rerouteErr   error
	lastPosition *Point
	detector     *offRouteDetector
	voice        *voiceScheduler
	observers    map[uint64]Observer
	nextObserver uint64
	pending      []func()
	draining     bool
}

func NewSession(opts SessionOptions) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Config.AnnouncementThresholds == nil {
		opts.Config.AnnouncementThresholds = DefaultConfig().AnnouncementThresholds
	}
	if opts.Speaker == nil {
		opts.Speaker = nopSpeaker{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Session{
		ID:        opts.ID,
		cfg:       opts.Config,
		router:    opts.Router,
		speaker:   opts.Speaker,
		source:    opts.Source,
		callbacks: opts.Callbacks,
		logger:    opts.Logger.With("sessionID", opts.ID),
		now:       opts.Clock,
		detector:  newOffRouteDetector(opts.Config.OffRouteThreshold, opts.Config.OffRouteCheckInterval),
		voice:     newVoiceScheduler(opts.Config.AnnouncementThresholds),
		observers: make(map[uint64]Observer),
	}
}

// Start makes route the active route and begins consuming the position
// source. Any previous navigation of this session is cancelled first.
func (s *Session) Start(ctx context.Context, route *Route, destination Point) error {
	if err := route.Validate(); err != nil {
		return fmt.Errorf("starting navigation: %w", err)
	}

	s.mu.Lock()
	s.teardownLocked()

	sessionCtx, cancel := context.WithCancel(ctx)
	s.ctx = sessionCtx
	s.cancel = cancel
	s.generation++
	s.route = route
	s.routeGen++
	s.stepIndex = 0
	s.destination = &destination
	s.traveling = true
	s.rerouting = false
	s.rerouteErr = nil
	s.lastPosition = nil
	s.detector.reset()
	s.voice.reset()

	if s.source != nil {
		positions, err := s.source.Subscribe(sessionCtx)
		if err != nil {
			s.teardownLocked()
			s.traveling = false
			s.route = nil
			snap := s.snapshotLocked()
			s.unlockAndNotify(&snap)
			return fmt.Errorf("subscribing to positions: %w", err)
		}
		go s.consume(sessionCtx, s.generation, positions)
	}

	s.logger.Info("navigation started", "steps", len(route.Steps), "distance", route.Distance)
	snap := s.snapshotLocked()
	s.unlockAndNotify(&snap)
	return nil
}

// Stop ends navigation: the position subscription, any in-flight reroute and
// ongoing speech are cancelled. Stopping an idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.traveling {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.generation++
	s.traveling = false
	s.rerouting = false
	s.route = nil
	s.stepIndex = 0
	s.destination = nil
	s.lastPosition = nil
	s.rerouteErr = nil

	s.logger.Info("navigation stopped")
	snap := s.snapshotLocked()
	s.unlockAndNotify(&snap, s.speaker.Cancel)
}

// ReplaceRoute swaps the active route and restarts at its first step.
func (s *Session) ReplaceRoute(route *Route) error {
	if err := route.Validate(); err != nil {
		return fmt.Errorf("replacing route: %w", err)
	}

	s.mu.Lock()
	if !s.traveling {
		s.mu.Unlock()
		return ErrNotTraveling
	}
	s.replaceRouteLocked(route)
	snap := s.snapshotLocked()
	s.unlockAndNotify(&snap, s.routeReplacedCallback(route))
	return nil
}

// SetVoiceGuidance turns voice announcements on or off. Turning them off
// cancels ongoing speech.
func (s *Session) SetVoiceGuidance(enabled bool) {
	s.mu.Lock()
	s.voice.enabled = enabled
	s.mu.Unlock()
	if !enabled {
		s.speaker.Cancel()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers observer. It is called right away with the current
// snapshot and again after every transition. The returned function
// unsubscribes and may be called any number of times.
func (s *Session) Subscribe(observer Observer) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = observer
	snap := s.snapshotLocked()
	s.unlockAndNotify(nil, func() { observer(snap) })

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// HandlePosition runs one sample through the pipeline: off-route detection,
// rerouting, step progression and voice guidance.
func (s *Session) HandlePosition(pos Position) Outcome {
	s.mu.Lock()
	return s.handlePositionLocked(pos)
}

// handlePositionLocked is called with mu held and releases it.
func (s *Session) handlePositionLocked(pos Position) Outcome {
	point := pos.Point()
	if !s.traveling || s.route == nil {
		s.mu.Unlock()
		return Outcome{}
	}
	s.lastPosition = &point

	if s.rerouting {
		out := Outcome{Verdict: VerdictSkipped, Rerouting: true, StepIndex: s.stepIndex}
		s.mu.Unlock()
		return out
	}

	step := s.route.Steps[s.stepIndex]
	verdict, distance := s.detector.evaluate(s.now(), point, step.Geometry)
	out := Outcome{Verdict: verdict, StepIndex: s.stepIndex}

	if verdict == VerdictOffRoute {
		s.logger.Info("traveler is off route", "distance", distance, "step", s.stepIndex)
		if s.destination != nil && s.router != nil {
			s.beginRerouteLocked(point)
			out.Rerouting = true
			snap := s.snapshotLocked()
			s.unlockAndNotify(&snap)
			return out
		}
	}

	var deliveries []func()
	var snap *Snapshot

	if s.advanceLocked(point) {
		out.Advanced = true
		out.StepIndex = s.stepIndex
		sn := s.snapshotLocked()
		snap = &sn
		if cb := s.callbacks.OnStepChange; cb != nil {
			index, current := s.stepIndex, s.route.Steps[s.stepIndex]
			deliveries = append(deliveries, func() { cb(index, current) })
		}
	}

	if text, ok := s.announcementLocked(point); ok {
		out.Announcement = text
		deliveries = append(deliveries, func() {
			s.speaker.Cancel()
			if err := s.speaker.Announce(text); err != nil {
				s.logger.Warn("failed to announce", "error", err)
			}
		})
	}

	s.unlockAndNotify(snap, deliveries...)
	return out
}

// consume feeds positions into the pipeline for the navigation identified by
// generation. Samples still buffered once that navigation has ended are
// dropped.
func (s *Session) consume(ctx context.Context, generation uint64, positions <-chan Position) {
	for {
		select {
		case pos, ok := <-positions:
			if !ok || ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			if s.generation != generation {
				s.mu.Unlock()
				return
			}
			s.handlePositionLocked(pos)
		case <-ctx.Done():
			return
		}
	}
}

// advanceLocked moves to the next step when the end of the current one is
// close enough. It never moves more than one step per sample.
func (s *Session) advanceLocked(point Point) bool {
	if s.stepIndex >= len(s.route.Steps)-1 {
		return false
	}
	end, ok := s.route.Steps[s.stepIndex].ManeuverPoint()
	if !ok {
		return false
	}
	if gis.Haversine(point, end) >= s.cfg.StepAdvanceThreshold {
		return false
	}
	s.stepIndex++
	s.logger.Debug("advanced to next step", "step", s.stepIndex)
	return true
}

func (s *Session) announcementLocked(point Point) (string, bool) {
	if !s.voice.enabled {
		return "", false
	}
	step := s.route.Steps[s.stepIndex]
	end, ok := step.ManeuverPoint()
	if !ok {
		return "", false
	}

	instruction := step.Instruction
	if s.stepIndex+1 < len(s.route.Steps) {
		instruction = s.route.Steps[s.stepIndex+1].Instruction
	}
	return s.voice.next(s.routeGen, s.stepIndex, gis.Haversine(point, end), instruction)
}

func (s *Session) replaceRouteLocked(route *Route) {
	s.route = route
	s.routeGen++
	s.stepIndex = 0
	s.rerouteErr = nil
	s.detector.reset()
	s.logger.Info("route replaced", "steps", len(route.Steps), "distance", route.Distance)
}

func (s *Session) beginRerouteLocked(from Point) {
	s.rerouting = true
	req := RouteRequest{
		Origin:      &from,
		Destination: s.destination,
		Profile:     ProfileDriving,
	}
	go s.reroute(s.ctx, s.generation, req)
}

func (s *Session) reroute(ctx context.Context, generation uint64, req RouteRequest) {
	route, err := s.router.FetchRoute(ctx, req)
	if err == nil {
		err = route.Validate()
	}

	s.mu.Lock()
	if generation != s.generation || !s.traveling {
		s.mu.Unlock()
		s.logger.Debug("discarding reroute result of a finished navigation")
		return
	}
	s.rerouting = false

	if err != nil {
		s.rerouteErr = fmt.Errorf("%w: %w", ErrRerouteFailed, err)
		s.logger.Warn("reroute failed, keeping current route", "error", err)
		rerouteErr := s.rerouteErr
		snap := s.snapshotLocked()
		var deliveries []func()
		if cb := s.callbacks.OnRerouteFailed; cb != nil {
			deliveries = append(deliveries, func() { cb(rerouteErr) })
		}
		s.unlockAndNotify(&snap, deliveries...)
		return
	}

	s.replaceRouteLocked(route)
	snap := s.snapshotLocked()
	s.unlockAndNotify(&snap, s.routeReplacedCallback(route))
}

func (s *Session) routeReplacedCallback(route *Route) func() {
	return func() {
		if cb := s.callbacks.OnRouteReplaced; cb != nil {
			cb(route)
		}
	}
}

func (s *Session) teardownLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.ID,
		Route:     s.route,
		StepIndex: s.stepIndex,
		Traveling: s.traveling,
		Rerouting: s.rerouting,
	}
	if s.lastPosition != nil {
		pos := *s.lastPosition
		snap.LastPosition = &pos
	}
	if s.rerouteErr != nil {
		snap.LastRerouteError = s.rerouteErr.Error()
	}
	return snap
}

// unlockAndNotify queues snap (when non nil) for every observer, followed by
// deliveries, then releases mu. Queued deliveries run outside mu in the order
// they were queued; whoever finds the queue idle drains it, so observers may
// call back into the session.
func (s *Session) unlockAndNotify(snap *Snapshot, deliveries ...func()) {
	if snap != nil {
		sn := *snap
		for _, o := range s.observers {
			s.pending = append(s.pending, func() { o(sn) })
		}
	}
	s.pending = append(s.pending, deliveries...)

	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		next()
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
