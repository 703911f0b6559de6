package sensor

import (
    "math"
    "math/rand"

    "aggmesh/pkg/wire"
)

// Source samples a node's sensors.
type Source interface {
    Read() Reading
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Reading

func (f SourceFunc) Read() Reading { return f() }

// Synthetic produces plausible, deterministic readings: every node has its
// own baseline and each sample wanders a little around it.
type Synthetic struct {
    rng  *rand.Rand
    base Reading
    n    int
}

func NewSynthetic(addr wire.Addr, seed int64) *Synthetic {
    rng := rand.New(rand.NewSource(seed ^ int64(addr)<<16 ^ int64(addr)))
    return &Synthetic{
        rng: rng,
        base: Reading{
            Temperature: 18 + rng.Float64()*8,
            Humidity:    40 + rng.Float64()*20,
            Light1:      200 + rng.Float64()*300,
            Light2:      100 + rng.Float64()*200,
        },
    }
}

func (s *Synthetic) Read() Reading {
    s.n++
    // slow daily-like swing plus noise
    swing := math.Sin(float64(s.n) / 10)
    return Reading{
        Temperature: s.base.Temperature + swing + s.rng.NormFloat64()*0.2,
        Humidity:    s.base.Humidity - 2*swing + s.rng.NormFloat64()*0.5,
        Light1:      math.Max(0, s.base.Light1+50*swing+s.rng.NormFloat64()*10),
        Light2:      math.Max(0, s.base.Light2+30*swing+s.rng.NormFloat64()*10),
    }
}

// Constant always returns r.
func Constant(r Reading) Source { return SourceFunc(func() Reading { return r }) }
