package wire

import "encoding/binary"

// Setup message layout (8 bytes).
//
//  0 ..1  Source   u16
//  2 ..3  Parent   u16
//  4 ..7  HopCount u32
const SetupSize = 8

// Setup is the tree construction message flooded from the sink.
type Setup struct {
    Source   Addr
    Parent   Addr
    HopCount uint32
}

func (s Setup) MarshalBinary() ([]byte, error) {
    buf := make([]byte, SetupSize)
    binary.LittleEndian.PutUint16(buf[0:2], uint16(s.Source))
    binary.LittleEndian.PutUint16(buf[2:4], uint16(s.Parent))
    binary.LittleEndian.PutUint32(buf[4:8], s.HopCount)
    return buf, nil
}

func (s *Setup) UnmarshalBinary(buf []byte) error {
    if len(buf) < SetupSize {
        return ErrShortBuffer
    }
    if len(buf) != SetupSize {
        return ErrLength
    }
    s.Source = Addr(binary.LittleEndian.Uint16(buf[0:2]))
    s.Parent = Addr(binary.LittleEndian.Uint16(buf[2:4]))
    s.HopCount = binary.LittleEndian.Uint32(buf[4:8])
    return nil
}
