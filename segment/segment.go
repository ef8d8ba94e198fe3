// Package segment implements the wire format for the two segment kinds
// (DATA and ACK) that flow across the simulated channel, including the
// one's-complement checksum that lets a receiver detect corruption.
//
// The layout follows the teacher stack's header packages (header/ipv4.go,
// header/tcp.go), which store fixed fields in a byte slice and expose
// typed accessors rather than reflect-based (de)serialization; the
// checksum algorithm is the same one's-complement-of-the-sum scheme those
// headers call out to a checksum package for (that package was not present
// in the retrieved copy of the teacher repo, so the routine is
// reimplemented here directly, see DESIGN.md).
package segment

import (
	"encoding/binary"
)

// Type distinguishes a DATA segment from an ACK segment.
type Type uint8

const (
	Data Type = 0
	Ack  Type = 1
)

func (t Type) String() string {
	if t == Data {
		return "DATA"
	}
	return "ACK"
}

const (
	headerLen  = 9 // type(1) + seq/ack(4) + length(2) + checksum(2)
	trailerFlagHasCumAck = 1 << 0
	trailerFlagHasSACK   = 1 << 1
)

// Segment is a decoded DATA or ACK segment.
//
// For DATA, Seq is the segment's sequence number and Payload its bytes.
//
// For ACK, Seq carries the protocol-specific acknowledgement value: the
// cumulative "received through" count for Go-Back-N, or the single
// acknowledged sequence number for Selective Repeat. The TCP-like variant
// additionally reports the receiver's cumulative prefix in the optional
// trailer (HasCumAck/CumAck) so the sender can detect duplicate-prefix
// ACKs for fast retransmit without changing the meaning of Seq itself.
type Segment struct {
	Type    Type
	Seq     uint32
	Payload []byte

	HasCumAck bool
	CumAck    uint32
	SACK      []uint32
}

// Encode serializes s into its wire representation.
func Encode(s Segment) []byte {
	trailer := encodeTrailer(s)
	buf := make([]byte, headerLen+len(s.Payload)+len(trailer))
	buf[0] = byte(s.Type)
	binary.BigEndian.PutUint32(buf[1:5], s.Seq)
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(s.Payload)))
	// checksum field buf[7:9] filled in last, once the rest is in place.
	copy(buf[headerLen:], s.Payload)
	copy(buf[headerLen+len(s.Payload):], trailer)
	binary.BigEndian.PutUint16(buf[7:9], checksum(buf))
	return buf
}

// checksumFieldOffset is where the two checksum bytes live in the encoded
// buffer (see the wire format table in spec.md §6).
const checksumFieldOffset = 7

func encodeTrailer(s Segment) []byte {
	if s.Type != Ack || (!s.HasCumAck && len(s.SACK) == 0) {
		return nil
	}
	var flags byte
	if s.HasCumAck {
		flags |= trailerFlagHasCumAck
	}
	if len(s.SACK) > 0 {
		flags |= trailerFlagHasSACK
	}
	buf := []byte{flags}
	if s.HasCumAck {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], s.CumAck)
		buf = append(buf, b[:]...)
	}
	if len(s.SACK) > 0 {
		buf = append(buf, byte(len(s.SACK)))
		for _, v := range s.SACK {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], v)
			buf = append(buf, b[:]...)
		}
	}
	return buf
}

// Decode parses the wire representation produced by Encode. ok is false
// when the segment is too short to be valid or its checksum does not
// match, which the caller (always the receiver side of a protocol) must
// treat exactly like a dropped segment.
func Decode(b []byte) (s Segment, ok bool) {
	if len(b) < headerLen {
		return Segment{}, false
	}
	want := binary.BigEndian.Uint16(b[checksumFieldOffset : checksumFieldOffset+2])
	if checksum(b) != want {
		return Segment{}, false
	}

	s.Type = Type(b[0])
	s.Seq = binary.BigEndian.Uint32(b[1:5])
	length := int(binary.BigEndian.Uint16(b[5:7]))
	rest := b[headerLen:]
	if length > len(rest) {
		return Segment{}, false
	}
	if length > 0 {
		s.Payload = append([]byte(nil), rest[:length]...)
	}

	trailer := rest[length:]
	if len(trailer) == 0 {
		return s, true
	}
	flags := trailer[0]
	off := 1
	if flags&trailerFlagHasCumAck != 0 {
		if off+4 > len(trailer) {
			return Segment{}, false
		}
		s.HasCumAck = true
		s.CumAck = binary.BigEndian.Uint32(trailer[off : off+4])
		off += 4
	}
	if flags&trailerFlagHasSACK != 0 {
		if off >= len(trailer) {
			return Segment{}, false
		}
		count := int(trailer[off])
		off++
		for i := 0; i < count; i++ {
			if off+4 > len(trailer) {
				return Segment{}, false
			}
			s.SACK = append(s.SACK, binary.BigEndian.Uint32(trailer[off:off+4]))
			off += 4
		}
	}
	return s, true
}

// checksum computes the 16-bit one's-complement checksum of b with the
// checksum field (bytes 7:9) treated as zero, the same scheme
// header/ipv4.go's CalculateChecksum uses over the IPv4 header. Both
// Encode and Decode zero that field explicitly before summing rather than
// relying on it landing on a 16-bit-aligned word, since the field starts
// at the odd offset 7.
func checksum(b []byte) uint16 {
	work := b
	if len(b) >= checksumFieldOffset+2 {
		work = append([]byte(nil), b...)
		work[checksumFieldOffset] = 0
		work[checksumFieldOffset+1] = 0
	}

	var sum uint32
	for i := 0; i+1 < len(work); i += 2 {
		sum += uint32(work[i])<<8 | uint32(work[i+1])
	}
	if len(work)%2 == 1 {
		sum += uint32(work[len(work)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Corrupt flips a single bit of the encoded wire bytes, simulating the
// channel's corrupt_prob. It must be applied to bytes already produced by
// Encode; Decode of the result is expected (not guaranteed, as with real
// corruption) to fail its checksum check.
func Corrupt(wire []byte, byteIdx, bitIdx int) []byte {
	out := append([]byte(nil), wire...)
	if len(out) == 0 {
		return out
	}
	out[byteIdx%len(out)] ^= 1 << uint(bitIdx%8)
	return out
}
