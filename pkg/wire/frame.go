package wire

import "math"

// Frame is a header + payload pair as seen by the radio.
type Frame struct {
    Header  Header
    Payload []byte
}

// IsBroadcast reports whether the frame is addressed to every neighbour.
func (f *Frame) IsBroadcast() bool { return f.Header.Dst == Broadcast }

// EncodeFrame returns header+payload as a single byte slice.
func (f *Frame) EncodeFrame() ([]byte, error) {
    if len(f.Payload) > math.MaxUint16 {
        return nil, ErrLength
    }
    f.Header.PayloadLen = uint16(len(f.Payload))
    out := make([]byte, HeaderSize+len(f.Payload))
    f.Header.put(out)
    copy(out[HeaderSize:], f.Payload)
    return out, nil
}

// DecodeFrame parses a single frame from buf. The payload is copied.
func (f *Frame) DecodeFrame(buf []byte) error {
    if err := f.Header.UnmarshalBinary(buf); err != nil {
        return err
    }
    need := int(f.Header.PayloadLen)
    if HeaderSize+need != len(buf) {
        return ErrLength
    }
    f.Payload = append(f.Payload[:0], buf[HeaderSize:HeaderSize+need]...)
    return nil
}

// Clone returns a deep copy, so a medium can hand the same frame to many receivers.
func (f Frame) Clone() Frame {
    f.Payload = append([]byte(nil), f.Payload...)
    return f
}
