// Package sensor is the reference application on top of the aggregation
// tree: nodes sample temperature, humidity and two light channels, relays
// merge the samples of their subtree and the sink reports the result.
package sensor

import (
    "encoding/binary"
    "errors"
    "math"
)

// Reading is one sample of a node's sensors.
type Reading struct {
    Temperature float64 `json:"temperature"`
    Humidity    float64 `json:"humidity"`
    Light1      float64 `json:"light1"`
    Light2      float64 `json:"light2"`
}

func (r Reading) values() [numFields]float64 {
    return [numFields]float64{r.Temperature, r.Humidity, r.Light1, r.Light2}
}

const numFields = 4

// Stat summarises one sensor channel over the readings of a subtree.
type Stat struct {
    _   struct{} `cbor:",toarray"`
    Sum float64  `json:"sum"`
    Min float64  `json:"min"`
    Max float64  `json:"max"`
}

// Aggregate is the merge of any number of readings. Merging is associative
// and commutative, so the result does not depend on tree shape.
type Aggregate struct {
    Count       uint32 `json:"count" cbor:"1,keyasint"`
    Temperature Stat   `json:"temperature" cbor:"2,keyasint"`
    Humidity    Stat   `json:"humidity" cbor:"3,keyasint"`
    Light1      Stat   `json:"light1" cbor:"4,keyasint"`
    Light2      Stat   `json:"light2" cbor:"5,keyasint"`
}

// AggregateSize is the size of the fixed binary form kept in the tree's
// aggregation buffer: a u32 count then sum, min, max per channel.
const AggregateSize = 4 + numFields*3*8

var ErrBufferSize = errors.New("sensor: aggregation buffer has wrong size")

func (a *Aggregate) stats() [numFields]*Stat {
    return [numFields]*Stat{&a.Temperature, &a.Humidity, &a.Light1, &a.Light2}
}

// Add folds one reading in.
func (a *Aggregate) Add(r Reading) {
    vals := r.values()
    for i, s := range a.stats() {
        v := vals[i]
        if a.Count == 0 {
            *s = Stat{Sum: v, Min: v, Max: v}
            continue
        }
        s.Sum += v
        s.Min = math.Min(s.Min, v)
        s.Max = math.Max(s.Max, v)
    }
    a.Count++
}

// Merge folds another aggregate in.
func (a *Aggregate) Merge(o Aggregate) {
    if o.Count == 0 {
        return
    }
    if a.Count == 0 {
        *a = o
        return
    }
    other := o.stats()
    for i, s := range a.stats() {
        s.Sum += other[i].Sum
        s.Min = math.Min(s.Min, other[i].Min)
        s.Max = math.Max(s.Max, other[i].Max)
    }
    a.Count += o.Count
}

// Mean is the per-channel average; zero for an empty aggregate.
func (a Aggregate) Mean() Reading {
    if a.Count == 0 {
        return Reading{}
    }
    n := float64(a.Count)
    return Reading{
        Temperature: a.Temperature.Sum / n,
        Humidity:    a.Humidity.Sum / n,
        Light1:      a.Light1.Sum / n,
        Light2:      a.Light2.Sum / n,
    }
}

// Put writes the fixed binary form into buf.
func (a *Aggregate) Put(buf []byte) error {
    if len(buf) != AggregateSize {
        return ErrBufferSize
    }
    binary.LittleEndian.PutUint32(buf[0:4], a.Count)
    off := 4
    for _, s := range a.stats() {
        for _, v := range [3]float64{s.Sum, s.Min, s.Max} {
            binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
            off += 8
        }
    }
    return nil
}

// Load reads the fixed binary form. An all-zero buffer is the empty aggregate.
func (a *Aggregate) Load(buf []byte) error {
    if len(buf) != AggregateSize {
        return ErrBufferSize
    }
    a.Count = binary.LittleEndian.Uint32(buf[0:4])
    off := 4
    for _, s := range a.stats() {
        f := func() float64 {
            v := math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
            off += 8
            return v
        }
        s.Sum, s.Min, s.Max = f(), f(), f()
    }
    return nil
}
