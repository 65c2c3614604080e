// Package agents drives a population of agents against a spatial index from
// their own goroutines, the way external agent processes use the environment.
package agents

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/envsim/envsim/sim/surface"
)

// Wanderer produces smooth, deterministic random walks from simplex noise.
// Each agent samples its own row of the noise field, so agents with different
// indices drift independently while a given (seed, index) always repeats.
type Wanderer struct {
	dx, dy     opensimplex.Noise
	place      opensimplex.Noise
	stepLength float64
	frequency  float64
}

// NewWanderer creates a generator whose steps are at most stepLength long on
// each axis.
func NewWanderer(seed int64, stepLength float64) *Wanderer {
	return &Wanderer{
		dx:         opensimplex.New(layerSeed(seed, layerStepX)),
		dy:         opensimplex.New(layerSeed(seed, layerStepY)),
		place:      opensimplex.NewNormalized(layerSeed(seed, layerPlacement)),
		stepLength: stepLength,
		frequency:  0.15,
	}
}

// Step returns the displacement of agent i on its t-th move.
func (w *Wanderer) Step(i int, t uint64) surface.Vec2 {
	x := float64(t) * w.frequency
	y := float64(i) * 7.31
	return surface.V(
		octaveNoise(w.dx, x, y, 2, 0.5)*w.stepLength,
		octaveNoise(w.dy, x, y, 2, 0.5)*w.stepLength,
	)
}

// Placement returns the initial position of agent i inside [0, extent)².
func (w *Wanderer) Placement(i int, extent float64) surface.Vec2 {
	u := w.place.Eval2(float64(i)*1.37, 0.5)
	v := w.place.Eval2(0.5, float64(i)*1.37)
	return surface.V(clampUnit(u)*extent, clampUnit(v)*extent)
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	frequency := 1.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// clampUnit keeps v in [0, 1) so placements stay inside the extent.
func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(v, math.Nextafter(1, 0)))
}
