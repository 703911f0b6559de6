package wire

import (
    "encoding/binary"
    "errors"
)

// Fixed frame header layout (14 bytes) shared by every link-layer frame.
// All integer fields are little-endian.
//
//  0  ..1   Magic   'A''G' (0x4741)
//  2        Version u8
//  3        Kind    u8
//  4  ..5   Channel u16
//  6  ..7   Src     u16
//  8  ..9   Dst     u16
//  10       LinkSeq u8
//  11       Flags   u8
//  12 ..13  PayloadLen u16
const (
    HeaderSize = 14
    magicWord  = uint16(0x4741) // 'A''G'

    Version uint8 = 1
)

var (
    ErrShortBuffer = errors.New("wire: short buffer")
    ErrBadMagic    = errors.New("wire: bad magic")
    ErrBadVersion  = errors.New("wire: unsupported version")
    ErrLength      = errors.New("wire: payload length mismatch")
)

// Header describes one link-layer frame.
type Header struct {
    Version    uint8
    Kind       Kind
    Channel    uint16
    Src        Addr
    Dst        Addr
    LinkSeq    uint8
    Flags      uint8
    PayloadLen uint16
}

// MarshalBinary encodes the header into a HeaderSize buffer.
func (h *Header) MarshalBinary() ([]byte, error) {
    buf := make([]byte, HeaderSize)
    h.put(buf)
    return buf, nil
}

func (h *Header) put(buf []byte) {
    binary.LittleEndian.PutUint16(buf[0:2], magicWord)
    v := h.Version
    if v == 0 {
        v = Version
    }
    buf[2] = v
    buf[3] = uint8(h.Kind)
    binary.LittleEndian.PutUint16(buf[4:6], h.Channel)
    binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Src))
    binary.LittleEndian.PutUint16(buf[8:10], uint16(h.Dst))
    buf[10] = h.LinkSeq
    buf[11] = h.Flags
    binary.LittleEndian.PutUint16(buf[12:14], h.PayloadLen)
}

// UnmarshalBinary decodes a header from buf.
func (h *Header) UnmarshalBinary(buf []byte) error {
    if len(buf) < HeaderSize {
        return ErrShortBuffer
    }
    if binary.LittleEndian.Uint16(buf[0:2]) != magicWord {
        return ErrBadMagic
    }
    if buf[2] != Version {
        return ErrBadVersion
    }
    h.Version = buf[2]
    h.Kind = Kind(buf[3])
    h.Channel = binary.LittleEndian.Uint16(buf[4:6])
    h.Src = Addr(binary.LittleEndian.Uint16(buf[6:8]))
    h.Dst = Addr(binary.LittleEndian.Uint16(buf[8:10]))
    h.LinkSeq = buf[10]
    h.Flags = buf[11]
    h.PayloadLen = binary.LittleEndian.Uint16(buf[12:14])
    return nil
}
