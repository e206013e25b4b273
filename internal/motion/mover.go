package motion

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"
)

// PointerSink receives the sampled pointer positions of a trajectory. The OS
// injection layer implements it; tests substitute a recorder.
type PointerSink interface {
	MovePointer(ctx context.Context, x, y int) error
}

// Config holds the motion-model parameters.
type Config struct {
	// FittsA and FittsB are the intercept/slope (ms) of the Fitts's-law
	// duration model.
	FittsA float64
	FittsB float64
	// PerlinAmplitude scales the low-frequency drift applied to the path.
	PerlinAmplitude float64
	// JitterSigma is the per-sample Gaussian noise in pixels.
	JitterSigma float64
	// SampleRate is the number of pointer samples emitted per second.
	SampleRate int
	// Rng allows deterministic tests; nil seeds from the clock.
	Rng *rand.Rand
}

// DefaultConfig returns parameters tuned for plausible human pointer motion.
func DefaultConfig() Config {
	return Config{
		FittsA:          120,
		FittsB:          160,
		PerlinAmplitude: 2.5,
		JitterSigma:     0.6,
		SampleRate:      100,
	}
}

// Mover generates human-like pointer trajectories: a cubic Bezier path with
// ease-in-out timing, Perlin drift and Gaussian jitter, paced by a
// Fitts's-law duration.
type Mover struct {
	cfg    Config
	rng    *rand.Rand
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
	logger *zap.Logger
}

// NewMover creates a Mover.
func NewMover(cfg Config, logger *zap.Logger) *Mover {
	seed := time.Now().UnixNano()
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 100
	}

	alpha, beta, n := 2.0, 2.0, int32(3)
	return &Mover{
		cfg:    cfg,
		rng:    rng,
		noiseX: perlin.NewPerlin(alpha, beta, n, seed),
		noiseY: perlin.NewPerlin(alpha, beta, n, seed+1),
		logger: logger.Named("motion"),
	}
}

// easeInOutCubic provides a smooth acceleration/deceleration profile.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// duration models movement time with Fitts's law plus +/-15% randomization.
func (m *Mover) duration(distance float64) time.Duration {
	const targetWidth = 30.0

	id := math.Log2(1.0 + distance/targetWidth)
	mt := m.cfg.FittsA + m.cfg.FittsB*id
	mt += mt * (m.rng.Float64()*0.3 - 0.15)
	return time.Duration(mt) * time.Millisecond
}

// path builds a cubic Bezier from start to end with perpendicular-offset
// control points so trajectories bow naturally instead of running straight.
func (m *Mover) path(start, end Vector2D, numSteps int) []Vector2D {
	mainVec := end.Sub(start)
	dist := mainVec.Mag()
	if dist < 1.0 || numSteps <= 1 {
		return []Vector2D{end}
	}

	dir := mainVec.Normalize()
	perp := Vector2D{X: -dir.Y, Y: dir.X}

	bow1 := (m.rng.Float64() - 0.5) * dist * 0.2
	bow2 := (m.rng.Float64() - 0.5) * dist * 0.2
	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3.0)).Add(perp.Mul(bow1))
	p2 := start.Add(dir.Mul(dist * 2.0 / 3.0)).Add(perp.Mul(bow2))

	pts := make([]Vector2D, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		omt := 1.0 - t
		omt2 := omt * omt
		omt3 := omt2 * omt
		t2 := t * t
		t3 := t2 * t
		pts[i] = p0.Mul(omt3).Add(p1.Mul(3 * omt2 * t)).Add(p2.Mul(3 * omt * t2)).Add(p3.Mul(t3))
	}
	return pts
}

// Glide moves the pointer from start to end along a generated trajectory,
// emitting samples to the sink. When maxDuration is positive it caps the
// Fitts's-law duration (callers with explicit timing budgets).
func (m *Mover) Glide(ctx context.Context, sink PointerSink, start, end Vector2D, maxDuration time.Duration) error {
	dist := start.Dist(end)
	dur := m.duration(dist)
	if maxDuration > 0 && dur > maxDuration {
		dur = maxDuration
	}

	numSteps := int(dur.Seconds() * float64(m.cfg.SampleRate))
	if numSteps < 2 {
		numSteps = 2
	}
	pts := m.path(start, end, numSteps)

	startTime := time.Now()
	for i, p := range pts {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := float64(i) / float64(len(pts)-1)
		elapsed := time.Since(startTime).Seconds()

		sample := p
		// The final sample lands exactly on the target; noise applies only
		// mid-flight.
		if i < len(pts)-1 {
			drift := Vector2D{
				X: m.noiseX.Noise1D(elapsed*0.8) * m.cfg.PerlinAmplitude,
				Y: m.noiseY.Noise1D(elapsed*0.8) * m.cfg.PerlinAmplitude,
			}
			sample = p.Add(drift).Add(Vector2D{
				X: m.rng.NormFloat64() * m.cfg.JitterSigma,
				Y: m.rng.NormFloat64() * m.cfg.JitterSigma,
			})
		}

		if err := sink.MovePointer(ctx, int(math.Round(sample.X)), int(math.Round(sample.Y))); err != nil {
			return err
		}

		target := startTime.Add(time.Duration(easeInOutCubic(t) * float64(dur)))
		if wait := time.Until(target); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil
}

// Circle emits a circular pointer path around a center, used by the drawing
// macro while a button is held down.
func (m *Mover) Circle(ctx context.Context, sink PointerSink, center Vector2D, radius float64) error {
	const stepDegrees = 5

	for angle := 0; angle <= 360; angle += stepDegrees {
		if err := ctx.Err(); err != nil {
			return err
		}
		rad := float64(angle) * math.Pi / 180.0
		x := center.X + radius*math.Cos(rad)
		y := center.Y + radius*math.Sin(rad)
		if err := sink.MovePointer(ctx, int(math.Round(x)), int(math.Round(y))); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}
