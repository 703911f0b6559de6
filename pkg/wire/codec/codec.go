// Package codec serialises application payloads carried by the aggregation
// tree. Payloads are opaque to the protocol; the sensor application picks a
// format and every payload carries it as a one-byte prefix.
package codec

import (
    "errors"
    "fmt"
    "strings"
)

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

const (
    ContentUnknown = "application/octet-stream"
    ContentCBOR    = "application/cbor"
    ContentJSON    = "application/json"
    ContentProto   = "application/x-protobuf"
)

// Format is the on-air indicator of payload encoding.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
)

var ErrEmptyPayload = errors.New("codec: empty payload")

func (f Format) String() string {
    switch f {
    case FormatJSON:
        return "json"
    case FormatCBOR:
        return "cbor"
    case FormatProto:
        return "proto"
    default:
        return "unknown"
    }
}

func (f Format) ContentType() string {
    switch f {
    case FormatJSON:
        return ContentJSON
    case FormatCBOR:
        return ContentCBOR
    case FormatProto:
        return ContentProto
    default:
        return ContentUnknown
    }
}

// ParseFormat maps a config string (json, cbor, proto) to a Format.
func ParseFormat(s string) (Format, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "json":
        return FormatJSON, nil
    case "cbor", "":
        return FormatCBOR, nil
    case "proto", "protobuf":
        return FormatProto, nil
    default:
        return FormatUnknown, fmt.Errorf("unknown payload format %q", s)
    }
}

// Registry maps content types to codecs.
type Registry struct{ byType map[string]Codec }

// NewRegistry returns a registry with every built-in codec registered.
func NewRegistry() (*Registry, error) {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    c, err := CBOR()
    if err != nil {
        return nil, err
    }
    r.Register(c)
    return r, nil
}

// Register adds a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// For returns the codec registered for f.
func (r *Registry) For(f Format) (Codec, error) {
    if c := r.Get(f.ContentType()); c != nil {
        return c, nil
    }
    return nil, fmt.Errorf("no codec for format %d", f)
}

// EncodeBody serializes v using the codec for f and prefixes the payload
// with a single format byte.
func (r *Registry) EncodeBody(f Format, v any) ([]byte, error) {
    c, err := r.For(f)
    if err != nil { return nil, err }
    b, err := c.Marshal(v)
    if err != nil { return nil, err }
    out := make([]byte, 1+len(b))
    out[0] = byte(f)
    copy(out[1:], b)
    return out, nil
}

// DecodeBody decodes a payload produced by EncodeBody into v.
func (r *Registry) DecodeBody(payload []byte, v any) (Format, error) {
    if len(payload) == 0 { return FormatUnknown, ErrEmptyPayload }
    f := Format(payload[0])
    c, err := r.For(f)
    if err != nil { return f, err }
    if err := c.Unmarshal(payload[1:], v); err != nil { return f, err }
    return f, nil
}
