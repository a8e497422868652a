package sensor

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Consumer receives each reading produced by a Source. Implementations
// must return quickly; a consumer that stalls longer than one tick
// lowers the effective sample rate but never wedges the source loop.
type Consumer func(Reading)

// Source drives one sensor kind at a fixed rate, stamping each generated
// sample into a Reading and handing it to the consumer.
type Source struct {
	gen         Generator
	interval    time.Duration
	consumer    Consumer
	clock       Clock
	stopTimeout time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// SourceOption customizes a Source.
type SourceOption func(*Source)

// WithClock overrides the time source.
func WithClock(clock Clock) SourceOption {
	return func(s *Source) { s.clock = clock }
}

// WithStopTimeout overrides how long Stop waits for the loop to exit.
func WithStopTimeout(d time.Duration) SourceOption {
	return func(s *Source) { s.stopTimeout = d }
}

// NewSource creates a source ticking at rateHz.
func NewSource(gen Generator, rateHz float64, consumer Consumer, log *slog.Logger, opts ...SourceOption) *Source {
	if rateHz <= 0 {
		rateHz = 1
	}
	s := &Source{
		gen:         gen,
		interval:    time.Duration(float64(time.Second) / rateHz),
		consumer:    consumer,
		clock:       time.Now,
		stopTimeout: time.Second,
		log:         log.With("sensor", string(gen.Kind())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the sensor kind this source produces.
func (s *Source) Kind() Kind { return s.gen.Kind() }

// Running reports whether the sampling loop is active.
func (s *Source) Running() bool { return s.running.Load() }

// Start begins the sampling loop. Calling Start on a running source is a
// no-op.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stop, s.done)
	s.log.Debug("sensor source started", "interval", s.interval)
}

// Stop requests loop termination and waits up to the stop timeout for it
// to exit. The running flag flips immediately so concurrent status
// queries observe the shutdown atomically.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return
	}

	close(s.stop)

	select {
	case <-s.done:
	case <-time.After(s.stopTimeout):
		s.log.Warn("sensor source did not stop within timeout", "timeout", s.stopTimeout)
	}
}

func (s *Source) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick generates one sample and delivers it. Generator failures are
// logged and the tick is skipped; they never kill the loop.
func (s *Source) tick() {
	now := s.clock()

	sample, err := s.gen.Generate(now)
	if err != nil {
		s.log.Warn("generator failed, skipping tick", "error", err)
		return
	}

	s.consumer(Reading{
		Timestamp: Unix(now),
		Kind:      s.gen.Kind(),
		Value:     sample.Scalar,
		Frame:     sample.Frame,
	})
}
