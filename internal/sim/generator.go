package sim

import (
	"math"
	"math/rand/v2"
)

// Payload is what the device sends. JSON names depend on the publisher's field-name setting.
type Payload struct {
	Temperature float64
	Humidity    float64
	Light       int64
}

// Generator produces a bounded random walk that looks like an outdoor sensor:
// small steps, clamped to plausible ranges well inside the accepted limits.
type Generator struct {
	rng         *rand.Rand
	temperature float64
	humidity    float64
	light       float64
}

func NewGenerator(seed uint64) *Generator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{
		rng:         rng,
		temperature: 24 + rng.Float64()*6,
		humidity:    55 + rng.Float64()*15,
		light:       300 + rng.Float64()*400,
	}
}

func (g *Generator) Next() Payload {
	g.temperature = clamp(g.temperature+g.step(0.3), -10, 45)
	g.humidity = clamp(g.humidity+g.step(1.0), 5, 98)
	g.light = clamp(g.light+g.step(40), 0, 4095)

	return Payload{
		Temperature: round2(g.temperature),
		Humidity:    round2(g.humidity),
		Light:       int64(math.Round(g.light)),
	}
}

func (g *Generator) step(scale float64) float64 {
	return (g.rng.Float64()*2 - 1) * scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
