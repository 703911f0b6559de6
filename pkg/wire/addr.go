package wire

import (
    "fmt"
    "strconv"
    "strings"
)

// Addr is a two byte node address, written as "hi.lo" (e.g. "1.0").
type Addr uint16

const (
    // Null means "no address"; setup messages from the sink declare it as parent.
    Null Addr = 0
    // Broadcast addresses every node in radio range.
    Broadcast Addr = 0xFFFF
)

// MakeAddr builds an address from its two bytes.
func MakeAddr(hi, lo uint8) Addr { return Addr(uint16(hi)<<8 | uint16(lo)) }

func (a Addr) Hi() uint8 { return uint8(a >> 8) }
func (a Addr) Lo() uint8 { return uint8(a) }

func (a Addr) IsNull() bool { return a == Null }

func (a Addr) String() string {
    return strconv.Itoa(int(a.Hi())) + "." + strconv.Itoa(int(a.Lo()))
}

// ParseAddr parses "hi.lo". A bare integer is accepted as the low byte.
func ParseAddr(s string) (Addr, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return Null, fmt.Errorf("empty address")
    }
    hiS, loS, dotted := strings.Cut(s, ".")
    if !dotted {
        lo, err := strconv.ParseUint(s, 10, 8)
        if err != nil {
            return Null, fmt.Errorf("parse address %q: %w", s, err)
        }
        return MakeAddr(0, uint8(lo)), nil
    }
    hi, err := strconv.ParseUint(hiS, 10, 8)
    if err != nil {
        return Null, fmt.Errorf("parse address %q: %w", s, err)
    }
    lo, err := strconv.ParseUint(loS, 10, 8)
    if err != nil {
        return Null, fmt.Errorf("parse address %q: %w", s, err)
    }
    return MakeAddr(uint8(hi), uint8(lo)), nil
}

// MustParseAddr is ParseAddr that panics; meant for tests and constants.
func MustParseAddr(s string) Addr {
    a, err := ParseAddr(s)
    if err != nil {
        panic(err)
    }
    return a
}
