// Package delivery holds at most one pending share and hands it to the
// destination surface once that surface answers a readiness probe.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
)

const eventSource = "delivery"

// ReadinessProbe asks the destination surface whether it can accept input.
type ReadinessProbe interface {
	Ready(ctx context.Context) (bool, error)
}

// ConsumerChannel hands a payload to the destination surface.
type ConsumerChannel interface {
	Persist(ctx context.Context, key, value string) error
	Navigate(ctx context.Context, path string, query map[string]string) error
}

// State is the coordinator's position in the delivery lifecycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateProbing
	StateRetrying
	StateDelivering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateProbing:
		return "probing"
	case StateRetrying:
		return "retrying"
	case StateDelivering:
		return "delivering"
	default:
		return "unknown"
	}
}

func (s State) inFlight() bool {
	return s == StateProbing || s == StateDelivering
}

// Pending is the single share waiting for delivery.
type Pending struct {
	Generation uint64
	Route      Route
	Target     share.Target
	Attempts   int
	ColdStart  bool
	Delivered  bool
	CreatedAt  time.Time
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State      State
	Generation uint64
	Pending    *Pending // copy; nil when idle
}

// Options wire a Coordinator.
type Options struct {
	Config    Config
	Extractor *share.Extractor
	Probe     ReadinessProbe
	Channel   ConsumerChannel
	Scheduler Scheduler       // defaults to the real clock
	Clock     clockwork.Clock // for timestamps; defaults to the real clock
	Bus       *bus.Bus        // optional
}

type lastDelivery struct {
	route Route
	at    time.Time
}

// Coordinator owns the pending-share slot.
type Coordinator struct {
	cfg       Config
	extractor *share.Extractor
	router    Router
	probe     ReadinessProbe
	channel   ConsumerChannel
	sched     Scheduler
	clock     clockwork.Clock
	bus       *bus.Bus

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	pending    *Pending
	generation uint64
	timerSeq   uint64
	stopTimer  func() bool
	cache      readinessCache
	launched   bool
	last       lastDelivery
	closed     bool
}

// New creates a coordinator. Probe and Channel are required.
func New(opts Options) (*Coordinator, error) {
	if opts.Probe == nil {
		return nil, errors.New("delivery: readiness probe is required")
	}
	if opts.Channel == nil {
		return nil, errors.New("delivery: consumer channel is required")
	}
	cfg := opts.Config.withDefaults()
	ext := opts.Extractor
	if ext == nil {
		ext = share.NewExtractor(share.Options{})
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = NewClockScheduler(clock)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:       cfg,
		extractor: ext,
		router:    NewRouter(ext.Classifier(), cfg.AddRoute, cfg.UploadRoute),
		probe:     opts.Probe,
		channel:   opts.Channel,
		sched:     sched,
		clock:     clock,
		bus:       opts.Bus,
		ctx:       ctx,
		cancel:    cancel,
		cache:     readinessCache{ttl: cfg.ReadinessTTL},
	}, nil
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// HandleShare extracts a target from req and makes it the pending delivery.
// It returns immediately; delivery happens on scheduler callbacks.
func (c *Coordinator) HandleShare(req share.Request) {
	target := c.extractor.Extract(req)
	if target.Empty() {
		logger.Debug("share carried nothing deliverable", "kind", req.Kind.String())
		return
	}
	route, err := c.router.ForTarget(target)
	if err != nil {
		logger.Warn("share not routable", "strategy", target.Strategy, "err", err)
		return
	}
	logger.Debug("share extracted", "strategy", target.Strategy, "internal", target.IsInternalLink, "payload", target.Payload())
	c.submit(route, target)
}

// HandleDeepLink routes a URI opened directly on the host.
func (c *Coordinator) HandleDeepLink(uri string) {
	c.HandleShare(share.Request{Kind: share.KindDeepLink, URI: uri})
}

// Submit makes route the pending delivery, bypassing extraction.
func (c *Coordinator) Submit(route Route) {
	c.submit(route, share.Target{URL: route.Payload, Strategy: "direct"})
}

func (c *Coordinator) submit(route Route, target share.Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	now := c.clock.Now()
	if p := c.pending; p != nil && p.Route.Equal(route) {
		logger.Debug("identical share already pending", "generation", p.Generation)
		return
	}
	// Every image shares one route; the page reads whichever image is latest.
	if !target.IsImageMarker && !c.last.at.IsZero() && c.last.route.Equal(route) && now.Sub(c.last.at) < c.cfg.DedupeWindow {
		logger.Debug("identical share delivered moments ago, ignoring", "route", route.String())
		return
	}

	if old := c.pending; old != nil {
		logger.Info("pending share superseded", "generation", old.Generation, "attempts", old.Attempts)
		c.bus.Emit(bus.EventDeliverySuperseded, eventSource, bus.DeliveryEventData{
			Generation: old.Generation,
			Path:       old.Route.Path,
			Attempt:    old.Attempts,
		})
		metricOutcomes.WithLabelValues("superseded").Inc()
	}

	c.generation++
	p := &Pending{
		Generation: c.generation,
		Route:      route,
		Target:     target,
		ColdStart:  !c.launched,
		CreatedAt:  now,
	}
	c.pending = p
	c.state = StatePending
	metricPending.Set(1)
	metricShares.WithLabelValues(targetKind(route, target.IsImageMarker)).Inc()

	delay := time.Duration(0)
	if p.ColdStart {
		delay = c.cfg.ColdDelay
	}
	logger.Info("share pending",
		"generation", p.Generation,
		"route", route.Path,
		"coldStart", p.ColdStart,
		"strategy", target.Strategy,
	)
	c.bus.Emit(bus.EventDeliveryPending, eventSource, bus.DeliveryEventData{
		Generation: p.Generation,
		Path:       route.Path,
		Payload:    route.Payload,
		ColdStart:  p.ColdStart,
		Delay:      delay,
	})
	c.scheduleLocked(p, delay)
}

// Kick schedules an immediate attempt for the pending share, if any. Calling
// it repeatedly, or with nothing pending, has no further effect.
func (c *Coordinator) Kick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	if c.closed || p == nil || p.Delivered || c.state.inFlight() {
		return
	}
	c.scheduleLocked(p, 0)
}

// OnStart signals that the host was created. A share that arrived during a
// cold launch gets a fresh attempt after the cold delay.
func (c *Coordinator) OnStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	if c.closed || p == nil || !p.ColdStart || c.state.inFlight() {
		return
	}
	c.scheduleLocked(p, c.cfg.ColdDelay)
}

// OnResume signals that the host reached the foreground. Unless a cold-start
// share is still pending, the readiness cache is invalidated.
func (c *Coordinator) OnResume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	p := c.pending
	midCold := p != nil && p.ColdStart && !p.Delivered
	if !midCold {
		c.cache.invalidate()
	}
	c.launched = true
	if p == nil || p.Delivered || c.state.inFlight() {
		return
	}
	delay := c.cfg.WarmDelay
	if p.ColdStart {
		delay = c.cfg.ColdDelay
	}
	c.scheduleLocked(p, delay)
}

// InvalidateReadiness drops any cached readiness result.
func (c *Coordinator) InvalidateReadiness() {
	c.mu.Lock()
	c.cache.invalidate()
	c.mu.Unlock()
}

// Status returns a snapshot of the coordinator.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state, Generation: c.generation}
	if c.pending != nil {
		cp := *c.pending
		st.Pending = &cp
	}
	return st
}

// Close cancels in-flight calls and discards the pending share.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopLocked()
	c.pending = nil
	c.state = StateIdle
	metricPending.Set(0)
	c.cancel()
}

func (c *Coordinator) scheduleLocked(p *Pending, delay time.Duration) {
	c.stopLocked()
	c.timerSeq++
	seq := c.timerSeq
	c.stopTimer = c.sched.AfterFunc(delay, func() { c.attempt(p, seq) })
}

func (c *Coordinator) stopLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Coordinator) currentLocked(p *Pending) bool {
	return !c.closed && c.pending == p && !p.Delivered
}

// attempt runs one probe-then-deliver cycle for p. seq identifies the timer
// that fired; callbacks from stopped or replaced timers return early.
func (c *Coordinator) attempt(p *Pending, seq uint64) {
	c.mu.Lock()
	if !c.currentLocked(p) || c.timerSeq != seq || c.state.inFlight() {
		c.mu.Unlock()
		return
	}
	c.stopTimer = nil
	hit := c.cache.lookup(c.clock.Now())
	epoch := c.cache.epoch
	c.state = StateProbing
	c.mu.Unlock()

	ready, probeErr := true, error(nil)
	if !hit {
		ready, probeErr = c.probeReady()
	}

	c.mu.Lock()
	if !c.currentLocked(p) {
		c.mu.Unlock()
		logger.Debug("readiness result for superseded share discarded", "generation", p.Generation)
		return
	}
	if !hit {
		if !c.cache.store(epoch, ready && probeErr == nil, c.clock.Now()) {
			// Host resumed while probing; the answer predates it.
			logger.Debug("readiness result predates invalidation, probing again", "generation", p.Generation)
			c.state = StatePending
			c.scheduleLocked(p, 0)
			c.mu.Unlock()
			return
		}
	}
	if probeErr != nil || !ready {
		if probeErr == nil {
			probeErr = ErrNotReady
		}
		c.retryLocked(p, probeErr)
		c.mu.Unlock()
		return
	}
	c.state = StateDelivering
	c.mu.Unlock()

	err := c.deliver(p.Route)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(p) {
		logger.Debug("delivery outcome for superseded share ignored", "generation", p.Generation, "err", err)
		return
	}
	if err != nil {
		c.cache.invalidate()
		c.retryLocked(p, err)
		return
	}

	p.Delivered = true
	c.launched = true
	c.last = lastDelivery{route: p.Route, at: c.clock.Now()}
	logger.Info("share delivered",
		"generation", p.Generation,
		"route", p.Route.Path,
		"attempts", p.Attempts+1,
		"coldStart", p.ColdStart,
	)
	c.bus.Emit(bus.EventDeliveryDelivered, eventSource, bus.DeliveryEventData{
		Generation: p.Generation,
		Path:       p.Route.Path,
		Payload:    p.Route.Payload,
		Attempt:    p.Attempts + 1,
		ColdStart:  p.ColdStart,
	})
	metricOutcomes.WithLabelValues("delivered").Inc()
	c.clearLocked()
}

func (c *Coordinator) retryLocked(p *Pending, cause error) {
	p.Attempts++
	reason := reasonLabel(cause)
	metricAttemptFailures.WithLabelValues(reason).Inc()

	if p.Attempts >= c.cfg.MaxAttempts {
		logger.Error("dropping pending share",
			"generation", p.Generation,
			"attempts", p.Attempts,
			"err", fmt.Errorf("%w: %w", ErrRetriesExhausted, cause),
		)
		c.bus.Emit(bus.EventDeliveryDropped, eventSource, bus.DeliveryEventData{
			Generation: p.Generation,
			Path:       p.Route.Path,
			Attempt:    p.Attempts,
			Reason:     reason,
		})
		metricOutcomes.WithLabelValues("dropped").Inc()
		c.clearLocked()
		return
	}

	delay := c.cfg.Backoff(p.ColdStart, p.Attempts)
	logger.Warn("destination not ready, retrying",
		"generation", p.Generation,
		"attempt", p.Attempts,
		"delay", delay,
		"reason", reason,
	)
	c.bus.Emit(bus.EventDeliveryRetrying, eventSource, bus.DeliveryEventData{
		Generation: p.Generation,
		Path:       p.Route.Path,
		Attempt:    p.Attempts,
		ColdStart:  p.ColdStart,
		Delay:      delay,
		Reason:     reason,
	})
	c.state = StateRetrying
	c.scheduleLocked(p, delay)
}

func (c *Coordinator) clearLocked() {
	c.stopLocked()
	c.pending = nil
	c.state = StateIdle
	metricPending.Set(0)
}

func (c *Coordinator) probeReady() (ready bool, err error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ProbeTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			ready, err = false, fmt.Errorf("readiness probe panic: %v", r)
		}
	}()

	ready, err = c.probe.Ready(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, ErrProbeTimeout
		}
		return false, fmt.Errorf("readiness probe: %w", err)
	}
	return ready, nil
}

func (c *Coordinator) deliver(route Route) (err error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ChannelTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrChannel, r)
		}
	}()

	if route.Payload != "" {
		if err := c.channel.Persist(ctx, c.cfg.PersistKey, route.Payload); err != nil {
			return fmt.Errorf("%w: persist: %w", ErrChannel, err)
		}
	}
	if err := c.channel.Navigate(ctx, route.Path, route.Query); err != nil {
		return fmt.Errorf("%w: navigate: %w", ErrChannel, err)
	}
	return nil
}
