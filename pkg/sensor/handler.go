package sensor

import (
    "fmt"
    "math"

    "go.uber.org/zap"
    "google.golang.org/protobuf/types/known/structpb"

    "aggmesh/pkg/tree"
    "aggmesh/pkg/wire"
    "aggmesh/pkg/wire/codec"
)

// SinkFunc receives every aggregate that reaches the sink.
type SinkFunc func(source wire.Addr, agg Aggregate)

// Handler implements tree.Handler for sensor readings. The tree's
// aggregation buffer holds an Aggregate in its fixed binary form; on the air
// aggregates are codec-encoded.
type Handler struct {
    src    Source
    codecs *codec.Registry
    format codec.Format
    sink   SinkFunc
    log    *zap.Logger

    decodeErrors uint64
}

var _ tree.Handler = (*Handler)(nil)

func NewHandler(src Source, codecs *codec.Registry, format codec.Format, sink SinkFunc, log *zap.Logger) *Handler {
    if log == nil { log = zap.NewNop() }
    return &Handler{src: src, codecs: codecs, format: format, sink: sink, log: log}
}

// DecodeErrors counts payloads that could not be decoded.
func (h *Handler) DecodeErrors() uint64 { return h.decodeErrors }

func (h *Handler) Recv(c *tree.Conn, source wire.Addr, payload []byte) {
    agg, err := h.Decode(payload)
    if err != nil {
        h.decodeErrors++
        h.log.Warn("undecodable report at sink", zap.Stringer("source", source), zap.Error(err))
        return
    }
    mean := agg.Mean()
    h.log.Info("aggregate received",
        zap.Stringer("source", source),
        zap.Uint32("readings", agg.Count),
        zap.Float64("temperature", mean.Temperature),
        zap.Float64("humidity", mean.Humidity),
        zap.Float64("light1", mean.Light1),
        zap.Float64("light2", mean.Light2))
    if h.sink != nil {
        h.sink(source, agg)
    }
}

func (h *Handler) SetupComplete(c *tree.Conn) {
    h.log.Debug("sensor node ready", zap.Bool("leaf", c.IsLeaf()), zap.Uint32("hops", c.Hops()))
}

func (h *Handler) AggregateUpdate(buf []byte, incoming []byte) {
    in, err := h.Decode(incoming)
    if err != nil {
        h.decodeErrors++
        h.log.Warn("undecodable child report", zap.Error(err))
        return
    }
    h.update(buf, func(a *Aggregate) { a.Merge(in) })
}

func (h *Handler) AggregateOwn(buf []byte) {
    r := h.src.Read()
    h.update(buf, func(a *Aggregate) { a.Add(r) })
}

func (h *Handler) StorePacket(c *tree.Conn, payload []byte) {
    in, err := h.Decode(payload)
    if err != nil {
        h.decodeErrors++
        h.log.Warn("undecodable child report", zap.Error(err))
        return
    }
    if err := in.Put(c.Data()); err != nil {
        h.log.Error("aggregation buffer", zap.Error(err))
    }
}

func (h *Handler) WriteDataToPacket(c *tree.Conn) ([]byte, error) {
    var a Aggregate
    if err := a.Load(c.Data()); err != nil {
        return nil, err
    }
    return h.Encode(a)
}

func (h *Handler) update(buf []byte, fn func(a *Aggregate)) {
    var a Aggregate
    if err := a.Load(buf); err != nil {
        h.log.Error("aggregation buffer", zap.Error(err))
        return
    }
    fn(&a)
    _ = a.Put(buf)
}

// Encode serialises an aggregate in the handler's payload format.
func (h *Handler) Encode(a Aggregate) ([]byte, error) {
    if h.format == codec.FormatProto {
        s, err := toStruct(a)
        if err != nil { return nil, err }
        return h.codecs.EncodeBody(codec.FormatProto, s)
    }
    return h.codecs.EncodeBody(h.format, a)
}

// Decode parses a payload in any registered format.
func (h *Handler) Decode(payload []byte) (Aggregate, error) {
    if len(payload) == 0 {
        return Aggregate{}, codec.ErrEmptyPayload
    }
    if codec.Format(payload[0]) == codec.FormatProto {
        var s structpb.Struct
        if _, err := h.codecs.DecodeBody(payload, &s); err != nil {
            return Aggregate{}, err
        }
        return fromStruct(&s)
    }
    var a Aggregate
    _, err := h.codecs.DecodeBody(payload, &a)
    return a, err
}

var fieldNames = [numFields]string{"temperature", "humidity", "light1", "light2"}

func toStruct(a Aggregate) (*structpb.Struct, error) {
    m := map[string]any{"count": float64(a.Count)}
    for i, s := range a.stats() {
        m[fieldNames[i]] = []any{s.Sum, s.Min, s.Max}
    }
    return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct) (Aggregate, error) {
    var a Aggregate
    f := s.GetFields()
    cnt, ok := f["count"]
    if !ok {
        return a, fmt.Errorf("sensor: proto aggregate without count")
    }
    n, isNum := cnt.GetKind().(*structpb.Value_NumberValue)
    if !isNum || math.IsNaN(n.NumberValue) || n.NumberValue < 0 || n.NumberValue > math.MaxUint32 ||
        n.NumberValue != math.Trunc(n.NumberValue) {
        return a, fmt.Errorf("sensor: proto aggregate count %v is not a reading count", cnt.AsInterface())
    }
    a.Count = uint32(n.NumberValue)
    for i, st := range a.stats() {
        l := f[fieldNames[i]].GetListValue().GetValues()
        if len(l) != 3 {
            return Aggregate{}, fmt.Errorf("sensor: proto aggregate field %s malformed", fieldNames[i])
        }
        st.Sum, st.Min, st.Max = l[0].GetNumberValue(), l[1].GetNumberValue(), l[2].GetNumberValue()
    }
    return a, nil
}
