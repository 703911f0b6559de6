package codec

import (
    "testing"

    "google.golang.org/protobuf/types/known/structpb"
)

func newRegistry(t *testing.T) *Registry {
    t.Helper()
    r, err := NewRegistry()
    if err != nil { t.Fatalf("registry: %v", err) }
    return r
}

func TestJSONBody(t *testing.T) {
    r := newRegistry(t)
    in := map[string]any{"x": 1, "y": "z"}
    b, err := r.EncodeBody(FormatJSON, in)
    if err != nil { t.Fatalf("encode: %v", err) }
    if b[0] != byte(FormatJSON) { t.Fatalf("format prefix mismatch") }
    var out map[string]any
    f, err := r.DecodeBody(b, &out)
    if err != nil { t.Fatalf("decode: %v", err) }
    if f != FormatJSON || out["y"] != "z" { t.Fatalf("roundtrip mismatch: %v %#v", f, out) }
}

func TestCBORBody(t *testing.T) {
    r := newRegistry(t)
    type sample struct {
        Count uint32  `cbor:"1,keyasint"`
        Sum   float64 `cbor:"2,keyasint"`
    }
    b, err := r.EncodeBody(FormatCBOR, sample{Count: 3, Sum: 61.5})
    if err != nil { t.Fatalf("encode: %v", err) }
    var out sample
    if _, err := r.DecodeBody(b, &out); err != nil { t.Fatalf("decode: %v", err) }
    if out.Count != 3 || out.Sum != 61.5 { t.Fatalf("roundtrip mismatch: %#v", out) }
}

func TestProtoBody(t *testing.T) {
    r := newRegistry(t)
    s, err := structpb.NewStruct(map[string]any{"k": "v"})
    if err != nil { t.Fatalf("struct: %v", err) }
    b, err := r.EncodeBody(FormatProto, s)
    if err != nil { t.Fatalf("encode: %v", err) }
    var out structpb.Struct
    if _, err := r.DecodeBody(b, &out); err != nil { t.Fatalf("decode: %v", err) }
    if out.Fields["k"].GetStringValue() != "v" { t.Fatalf("value mismatch") }
    if _, err := r.EncodeBody(FormatProto, map[string]any{}); err == nil {
        t.Fatalf("expected error for non-proto value")
    }
}

func TestDecodeBodyErrors(t *testing.T) {
    r := newRegistry(t)
    var v map[string]any
    if _, err := r.DecodeBody(nil, &v); err != ErrEmptyPayload { t.Fatalf("want ErrEmptyPayload, got %v", err) }
    if _, err := r.DecodeBody([]byte{42, 1}, &v); err == nil { t.Fatalf("expected unknown format error") }
}

func TestParseFormat(t *testing.T) {
    for in, want := range map[string]Format{"json": FormatJSON, "CBOR": FormatCBOR, "": FormatCBOR, "protobuf": FormatProto} {
        got, err := ParseFormat(in)
        if err != nil || got != want { t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err) }
    }
    if _, err := ParseFormat("xml"); err == nil { t.Fatalf("expected error") }
}
