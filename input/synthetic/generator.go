package synthetic

import (
	"context"
	"image"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/pkg/eventstream"
)

// Config controls the generated stream.
type Config struct {
	Source         string        `json:"source" yaml:"source"`
	Width          int           `json:"width" yaml:"width"`
	Height         int           `json:"height" yaml:"height"`
	EventRate      float64       `json:"event_rate" yaml:"event_rate"`
	FrameInterval  time.Duration `json:"frame_interval" yaml:"frame_interval"`
	BatchInterval  time.Duration `json:"batch_interval" yaml:"batch_interval"`
	OrbitPeriod    time.Duration `json:"orbit_period" yaml:"orbit_period"`
	Jitter         int64         `json:"jitter" yaml:"jitter"`
	ResetEvery     time.Duration `json:"reset_every" yaml:"reset_every"`
	StartTimestamp int64         `json:"start_timestamp" yaml:"start_timestamp"`
	Seed           uint64        `json:"seed" yaml:"seed"`
}

// DefaultConfig returns a 640x480 source producing 200k events per second.
func DefaultConfig() Config {
	return Config{
		Source:         "synthetic",
		Width:          640,
		Height:         480,
		EventRate:      200_000,
		FrameInterval:  40 * time.Millisecond,
		BatchInterval:  10 * time.Millisecond,
		OrbitPeriod:    2 * time.Second,
		StartTimestamp: 1_000_000,
		Seed:           1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "synthetic", "Validate", "resolution must be positive")
	case c.EventRate < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "synthetic", "Validate", "event rate must not be negative")
	case c.BatchInterval <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "synthetic", "Validate", "batch interval must be positive")
	case c.FrameInterval < 0 || c.ResetEvery < 0 || c.Jitter < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "synthetic", "Validate", "intervals and jitter must not be negative")
	case c.OrbitPeriod <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "synthetic", "Validate", "orbit period must be positive")
	}
	return nil
}

// Generator produces events and frames into an Inserter.
type Generator struct {
	cfg    Config
	sink   eventstream.Inserter
	logger *slog.Logger
	rng    *rand.Rand

	// device clock state, owned by whoever calls Step
	clock        int64
	sinceReset   int64
	nextFrame    int64
	carry        float64
	eventsOut    int64
	framesOut    int64
	resetsForced int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a generator.
func New(cfg Config, sink eventstream.Inserter, logger *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "synthetic", "New", "sink is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("component", "synthetic", "source", cfg.Source),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		clock:  cfg.StartTimestamp,
	}, nil
}

// Source returns the configured source name.
func (g *Generator) Source() string {
	return g.cfg.Source
}

// Clock returns the current device clock.
func (g *Generator) Clock() int64 {
	return g.clock
}

// Counts returns how many events, frames and forced resets were produced.
func (g *Generator) Counts() (events, frames, resets int64) {
	return g.eventsOut, g.framesOut, g.resetsForced
}

// Step advances the device clock by elapsed and emits the samples that fall
// inside it. Step is not safe for concurrent use; Start calls it from one
// goroutine.
func (g *Generator) Step(elapsed time.Duration) {
	span := elapsed.Microseconds()
	if span <= 0 {
		return
	}

	if g.cfg.ResetEvery > 0 && g.sinceReset >= g.cfg.ResetEvery.Microseconds() {
		g.logger.Info("Simulating device restart", "clock", g.clock)
		g.clock = g.cfg.StartTimestamp
		g.nextFrame = 0
		g.sinceReset = 0
		g.resetsForced++
	}

	want := g.cfg.EventRate*elapsed.Seconds() + g.carry
	n := int64(want)
	g.carry = want - float64(n)

	start := g.clock
	frameInterval := g.cfg.FrameInterval.Microseconds()
	if g.nextFrame == 0 {
		g.nextFrame = start
	}

	emitted := int64(0)
	for k := int64(1); k <= n; k++ {
		ts := start + k*span/n
		g.sink.InsertEvent(g.event(ts))
		emitted++
		for frameInterval > 0 && g.nextFrame <= ts {
			g.emitFrame(g.nextFrame)
			g.nextFrame += frameInterval
		}
	}
	end := start + span
	for frameInterval > 0 && g.nextFrame <= end {
		g.emitFrame(g.nextFrame)
		g.nextFrame += frameInterval
	}

	g.clock = end
	g.sinceReset += span
	g.eventsOut += emitted
}

func (g *Generator) event(ts int64) eventstream.Event {
	cx, cy := g.blobCentre(ts)
	r := float64(min(g.cfg.Width, g.cfg.Height)) / 16
	x := cx + g.rng.NormFloat64()*r
	y := cy + g.rng.NormFloat64()*r

	if g.cfg.Jitter > 0 {
		ts -= g.rng.Int64N(g.cfg.Jitter + 1)
	}

	var p uint8
	if g.rng.IntN(2) == 1 {
		p = 1
	}
	return eventstream.Event{
		X:         int32(clampCoord(x, g.cfg.Width)),
		Y:         int32(clampCoord(y, g.cfg.Height)),
		Timestamp: ts,
		Polarity:  p,
	}
}

func (g *Generator) emitFrame(ts int64) {
	g.sink.InsertFrame(eventstream.Frame{Image: g.frame(ts), Timestamp: ts})
	g.framesOut++
}

func (g *Generator) frame(ts int64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.cfg.Width, g.cfg.Height))
	cx, cy := g.blobCentre(ts)
	r := float64(min(g.cfg.Width, g.cfg.Height)) / 8
	for y := 0; y < g.cfg.Height; y++ {
		for x := 0; x < g.cfg.Width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				img.Pix[y*img.Stride+x] = 220
			} else {
				img.Pix[y*img.Stride+x] = 20
			}
		}
	}
	return img
}

func (g *Generator) blobCentre(ts int64) (float64, float64) {
	period := float64(g.cfg.OrbitPeriod.Microseconds())
	phase := 2 * math.Pi * float64(ts-g.cfg.StartTimestamp) / period
	w, h := float64(g.cfg.Width), float64(g.cfg.Height)
	radius := min(w, h) / 3
	return w/2 + radius*math.Cos(phase), h/2 + radius*math.Sin(phase)
}

func clampCoord(v float64, limit int) int {
	return min(max(int(v), 0), limit-1)
}

// Start runs Step every BatchInterval until Stop or ctx is done.
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "synthetic", "Start", "start generator")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.running = true

	go g.run(runCtx, g.done)
	g.logger.Info("Synthetic source started", "event_rate", g.cfg.EventRate, "resolution", [2]int{g.cfg.Width, g.cfg.Height})
	return nil
}

func (g *Generator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(g.cfg.BatchInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.Step(now.Sub(last))
			last = now
		}
	}
}

// Stop halts the generator and waits up to timeout for it to exit.
func (g *Generator) Stop(timeout time.Duration) error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "synthetic", "Stop", "wait for generator")
	}
}
