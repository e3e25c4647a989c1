package mqtt3

import (
	"errors"
	"fmt"
)

// PacketType represents an MQTT control packet type.
type PacketType byte

// MQTT 3.1.1 control packet types. Codes 0 and 15 are reserved.
const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
)

// String returns the string representation of the packet type.
func (p PacketType) String() string {
	switch p {
	case PacketCONNECT:
		return "CONNECT"
	case PacketCONNACK:
		return "CONNACK"
	case PacketPUBLISH:
		return "PUBLISH"
	case PacketPUBACK:
		return "PUBACK"
	case PacketPUBREC:
		return "PUBREC"
	case PacketPUBREL:
		return "PUBREL"
	case PacketPUBCOMP:
		return "PUBCOMP"
	case PacketSUBSCRIBE:
		return "SUBSCRIBE"
	case PacketSUBACK:
		return "SUBACK"
	case PacketUNSUBSCRIBE:
		return "UNSUBSCRIBE"
	case PacketUNSUBACK:
		return "UNSUBACK"
	case PacketPINGREQ:
		return "PINGREQ"
	case PacketPINGRESP:
		return "PINGRESP"
	case PacketDISCONNECT:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Valid returns true if the packet type is not one of the reserved codes.
func (p PacketType) Valid() bool {
	return p >= PacketCONNECT && p <= PacketDISCONNECT
}

// ErrInvalidFlags is returned when the low nibble of the fixed header does
// not match the pattern reserved for the packet type.
var ErrInvalidFlags = fmt.Errorf("%w: invalid fixed header flags", ErrIncorrectPacketFormat)

// Fixed header flag bits.
const (
	flagDup      = 0x08
	flagQoSMask  = 0x06
	flagRetain   = 0x01
	flagReserved = 0x02 // PUBREL, SUBSCRIBE, UNSUBSCRIBE
)

// Header is the decoded fixed header of an MQTT control packet.
type Header struct {
	Type   PacketType
	Flags  byte
	Length uint32
}

// NewHeader builds a validated header from the first byte of a packet and
// its already decoded remaining length.
// MQTT 3.1.1 spec: Section 2.2
func NewHeader(b byte, length uint32) (Header, error) {
	h := Header{
		Type:   PacketType(b >> 4),
		Flags:  b & 0x0F,
		Length: length,
	}

	if !h.Type.Valid() {
		return h, fmt.Errorf("%w: reserved code %d", ErrUnsupportedPacketType, byte(h.Type))
	}

	if err := h.validateFlags(); err != nil {
		return h, err
	}

	return h, nil
}

// validateFlags checks the reserved flag bits [MQTT-2.2.2-1] [MQTT-2.2.2-2].
// PUBLISH flags are checked lazily through QoS.
func (h Header) validateFlags() error {
	switch h.Type {
	case PacketPUBLISH:
		return nil
	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		if h.Flags != flagReserved {
			return ErrInvalidFlags
		}
	default:
		if h.Flags != 0 {
			return ErrInvalidFlags
		}
	}
	return nil
}

// Dup returns the DUP flag. Only meaningful for PUBLISH.
func (h Header) Dup() bool {
	return h.Flags&flagDup != 0
}

// QoS returns the QoS level encoded in the flags.
// Returns ErrInvalidQoS for the bit pattern 11.
func (h Header) QoS() (QoS, error) {
	return QoSFromByte((h.Flags & flagQoSMask) >> 1)
}

// Retain returns the RETAIN flag. Only meaningful for PUBLISH.
func (h Header) Retain() bool {
	return h.Flags&flagRetain != 0
}

// Remaining length errors.
var (
	ErrMalformedRemainingLength = errors.New("mqtt3: malformed remaining length")
)

const (
	maxRemainingLength  = 268435455 // 0x0FFFFFFF
	lengthContinueBit   = 0x80
	lengthValueMask     = 0x7F
	lengthMaxMultiplier = 128 * 128 * 128
)

// decodeRemainingLength reads the variable length encoded remaining length.
// Returns the value and the number of bytes read.
// MQTT 3.1.1 spec: Section 2.2.3
func decodeRemainingLength(src *byteSource) (uint32, int, error) {
	var value uint32
	var multiplier uint32 = 1
	bytesRead := 0

	for {
		b, err := src.readByte()
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead++

		value += uint32(b&lengthValueMask) * multiplier

		if b&lengthContinueBit == 0 {
			break
		}

		if multiplier == lengthMaxMultiplier {
			return 0, bytesRead, ErrMalformedRemainingLength
		}
		multiplier *= 128
	}

	return value, bytesRead, nil
}
