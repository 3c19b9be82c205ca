// Behaviour parameter distributions. Each Dist is a tagged variant (fixed,
// uniform, lognormal, normal) resolved once at compile time into a Sampler
// bound to the run stream; the tick-level code never inspects config again.

package scenario

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dist is the YAML distribution spec. Exactly one variant's fields apply:
//
//	{type: fixed, value: 1.4}
//	{type: uniform, low: 0.8, high: 1.6}
//	{type: lognormal, mean: 0.3, sigma: 0.2}   # mean/sigma of log(X)
//	{type: normal, mean: 1.35, sigma: 0.25}
//
// An empty type degenerates to fixed.
type Dist struct {
	Type  string  `yaml:"type"`
	Value float64 `yaml:"value"`
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
	Mean  float64 `yaml:"mean"`
	Sigma float64 `yaml:"sigma"`
}

// Sampler draws one value per call from the resolved distribution.
type Sampler interface {
	Sample() float64
}

func (d Dist) check() error {
	switch d.Type {
	case "", "fixed", "lognormal", "normal":
		return nil
	case "uniform":
		if d.High < d.Low {
			return fmt.Errorf("uniform: high %v < low %v", d.High, d.Low)
		}
		return nil
	default:
		return fmt.Errorf("unknown distribution type %q", d.Type)
	}
}

// Resolve binds the spec to the run stream. Sigma-less lognormal/normal
// specs collapse to a constant.
func (d Dist) Resolve(src rand.Source) (Sampler, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	switch d.Type {
	case "", "fixed":
		return fixedSampler{value: d.Value}, nil
	case "uniform":
		return randSampler{r: distuv.Uniform{Min: d.Low, Max: d.High, Src: src}}, nil
	case "lognormal":
		return randSampler{r: distuv.LogNormal{Mu: d.Mean, Sigma: d.Sigma, Src: src}}, nil
	case "normal":
		return randSampler{r: distuv.Normal{Mu: d.Mean, Sigma: d.Sigma, Src: src}}, nil
	}
	return nil, fmt.Errorf("unknown distribution type %q", d.Type)
}

type fixedSampler struct {
	value float64
}

func (s fixedSampler) Sample() float64 { return s.value }

// randSampler adapts any distuv distribution to the Sampler interface.
type randSampler struct {
	r interface{ Rand() float64 }
}

func (s randSampler) Sample() float64 { return s.r.Rand() }

// clamp bounds a sample to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
