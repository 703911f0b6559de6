package memkv

import (
    "bytes"
    "testing"
    "time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(maxBytes uint64) (*Store, *fakeClock) {
    c := &fakeClock{t: time.Unix(0, 0)}
    return New(Options{MaxBytes: maxBytes, Now: c.now}), c
}

func TestSetGetCopies(t *testing.T) {
    s, _ := newTestStore(0)
    val := []byte("abc")
    if !s.Set("k1", val, 0) {
        t.Fatalf("Set failed")
    }
    val[0] = 'X'
    v, ok := s.Get("k1")
    if !ok || string(v) != "abc" {
        t.Fatalf("Get mismatch: ok=%v v=%q", ok, v)
    }
    // изменение копии не должно влиять на хранилище
    v[0] = 'Y'
    if v2, _ := s.Get("k1"); string(v2) != "abc" {
        t.Fatalf("stored value changed through returned slice: %q", v2)
    }
}

func TestLazyExpiry(t *testing.T) {
    s, c := newTestStore(0)
    s.Set("k3", []byte("v"), 50*time.Millisecond)
    c.advance(40 * time.Millisecond)
    if _, ok := s.Get("k3"); !ok {
        t.Fatalf("key expired early")
    }
    c.advance(80 * time.Millisecond)
    if _, ok := s.Get("k3"); ok {
        t.Fatalf("expected key expired")
    }
    st := s.Metrics()
    if st.Expired != 1 || st.Keys != 0 || st.Bytes != 0 || st.Hits != 1 || st.Misses != 1 {
        t.Fatalf("metrics after expiry: %+v", st)
    }
}

func TestSweep(t *testing.T) {
    s, c := newTestStore(0)
    s.Set("a", []byte("1"), time.Second)
    s.Set("b", []byte("2"), 0)
    c.advance(2 * time.Second)
    if n := s.Sweep(); n != 1 {
        t.Fatalf("Sweep removed %d", n)
    }
    if got := s.Keys(""); len(got) != 1 || got[0] != "b" {
        t.Fatalf("wrong keys survived the sweep: %v", got)
    }
    if st := s.Metrics(); st.Expired != 1 || st.Keys != 1 {
        t.Fatalf("metrics after sweep: %+v", st)
    }
}

func TestUpdateCreatesAndRefreshes(t *testing.T) {
    s, c := newTestStore(0)
    inc := func(old []byte) []byte { return append(append([]byte{}, old...), '+') }
    s.Update("n", time.Second, inc)
    c.advance(900 * time.Millisecond)
    s.Update("n", time.Second, inc)
    c.advance(900 * time.Millisecond)
    v, ok := s.Get("n")
    if !ok || string(v) != "++" {
        t.Fatalf("Update result ok=%v v=%q", ok, v)
    }
    st := s.Metrics()
    if st.Sets != 1 || st.Updates != 1 {
        t.Fatalf("Sets=1 Updates=1 expected, got %d %d", st.Sets, st.Updates)
    }
}

func TestKeysByPrefix(t *testing.T) {
    s, c := newTestStore(0)
    s.Set("nb:2.0", []byte("x"), 0)
    s.Set("nb:1.0", []byte("x"), 0)
    s.Set("nb:3.0", []byte("x"), time.Second)
    s.Set("other", []byte("x"), 0)
    c.advance(2 * time.Second)
    got := s.Keys("nb:")
    if len(got) != 2 || got[0] != "nb:1.0" || got[1] != "nb:2.0" {
        t.Fatalf("Keys = %v", got)
    }
}

func TestMaxBytes(t *testing.T) {
    s, _ := newTestStore(64)
    if !s.Set("a", bytes.Repeat([]byte{'x'}, 50), 0) {
        t.Fatalf("expected initial Set to succeed")
    }
    // эта запись превысит лимит
    if s.Set("b", bytes.Repeat([]byte{'y'}, 20), 0) {
        t.Fatalf("expected Set to be rejected when exceeding MaxBytes")
    }
    if s.Update("a", 0, func([]byte) []byte { return bytes.Repeat([]byte{'z'}, 70) }) {
        t.Fatalf("expected Update to be rejected when exceeding MaxBytes")
    }
    if v, _ := s.Get("a"); len(v) != 50 {
        t.Fatalf("value must remain 50 bytes, got %d", len(v))
    }
    s.Set("a", []byte("short"), 0)
    s.Delete("a")
    st := s.Metrics()
    if st.Bytes != 0 || st.Keys != 0 || st.Dels != 1 {
        t.Fatalf("accounting mismatch: %+v", st)
    }
}
