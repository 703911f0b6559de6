package wire

import (
    "bytes"
    "testing"
)

func TestSplitThreeHundredBytes(t *testing.T) {
    payload := bytes.Repeat([]byte{0xAB}, 300)
    parts := Split(payload, 128)
    if len(parts) != 3 { t.Fatalf("want 3 fragments, got %d", len(parts)) }
    want := []int{128, 128, 44}
    for i, p := range parts {
        if len(p) != want[i] { t.Fatalf("fragment %d: len %d, want %d", i, len(p), want[i]) }
    }
    if !bytes.Equal(bytes.Join(parts, nil), payload) { t.Fatalf("joined fragments differ") }
}

func TestSplitSmallAndEmpty(t *testing.T) {
    if parts := Split([]byte("abc"), 128); len(parts) != 1 || string(parts[0]) != "abc" {
        t.Fatalf("small payload: %q", parts)
    }
    if parts := Split(nil, 128); len(parts) != 0 {
        t.Fatalf("empty payload should split into nothing, got %d", len(parts))
    }
    if parts := Split([]byte("abc"), 0); parts != nil {
        t.Fatalf("zero frame size should return nil")
    }
}

func TestFragmentRoundtrip(t *testing.T) {
    h := FragmentHeader{MessageID: 0xBEEF, Seq: 2, TotalLen: 300, Originator: MakeAddr(4, 1)}
    raw := EncodeFragment(h, []byte("tail"))
    f, err := DecodeFragment(raw)
    if err != nil { t.Fatalf("decode: %v", err) }
    if f.Header != h || string(f.Data) != "tail" {
        t.Fatalf("fragment mismatch: %#v %q", f.Header, f.Data)
    }
    if _, err := DecodeFragment(raw[:4]); err == nil {
        t.Fatalf("expected short buffer error")
    }
    over := EncodeFragment(FragmentHeader{TotalLen: 2}, []byte("toolong"))
    if _, err := DecodeFragment(over); err == nil {
        t.Fatalf("expected length error when data exceeds total")
    }
}

func TestSetupRoundtrip(t *testing.T) {
    s := Setup{Source: MakeAddr(2, 0), Parent: MakeAddr(1, 0), HopCount: 2}
    b, _ := s.MarshalBinary()
    var d Setup
    if err := d.UnmarshalBinary(b); err != nil { t.Fatalf("unmarshal: %v", err) }
    if d != s { t.Fatalf("setup mismatch: %#v", d) }
}
