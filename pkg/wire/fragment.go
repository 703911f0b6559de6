package wire

import "encoding/binary"

// Fragment header layout (9 bytes), placed in front of the fragment bytes
// inside a KindData frame payload.
//
//  0 ..1  MessageID  u16
//  2      Seq        u8
//  3 ..6  TotalLen   u32
//  7 ..8  Originator u16
const FragmentHeaderSize = 9

// MaxFragments is the number of distinct sequence numbers a message can use.
const MaxFragments = 256

// FragmentHeader identifies one slice of a larger message.
type FragmentHeader struct {
    MessageID  uint16
    Seq        uint8
    TotalLen   uint32
    Originator Addr
}

// Fragment is a decoded fragment: header plus the bytes it carries.
type Fragment struct {
    Header FragmentHeader
    Data   []byte
}

// EncodeFragment writes the fragment header followed by data.
func EncodeFragment(h FragmentHeader, data []byte) []byte {
    out := make([]byte, FragmentHeaderSize+len(data))
    binary.LittleEndian.PutUint16(out[0:2], h.MessageID)
    out[2] = h.Seq
    binary.LittleEndian.PutUint32(out[3:7], h.TotalLen)
    binary.LittleEndian.PutUint16(out[7:9], uint16(h.Originator))
    copy(out[FragmentHeaderSize:], data)
    return out
}

// DecodeFragment parses a fragment. Data aliases buf.
func DecodeFragment(buf []byte) (Fragment, error) {
    if len(buf) < FragmentHeaderSize {
        return Fragment{}, ErrShortBuffer
    }
    var f Fragment
    f.Header.MessageID = binary.LittleEndian.Uint16(buf[0:2])
    f.Header.Seq = buf[2]
    f.Header.TotalLen = binary.LittleEndian.Uint32(buf[3:7])
    f.Header.Originator = Addr(binary.LittleEndian.Uint16(buf[7:9]))
    f.Data = buf[FragmentHeaderSize:]
    if uint64(len(f.Data)) > uint64(f.Header.TotalLen) {
        return Fragment{}, ErrLength
    }
    return f, nil
}

// Split carves payload into frameSize slices, in sequence order. It returns
// nil when frameSize is not positive.
func Split(payload []byte, frameSize int) [][]byte {
    if frameSize <= 0 {
        return nil
    }
    n := (len(payload) + frameSize - 1) / frameSize
    out := make([][]byte, 0, n)
    for start := 0; start < len(payload); start += frameSize {
        end := min(start+frameSize, len(payload))
        out = append(out, payload[start:end])
    }
    return out
}
