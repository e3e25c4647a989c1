package mqtt3

import (
	"errors"
	"fmt"
	"io"
)

// Decoding errors. Truncated input is reported as io.ErrUnexpectedEOF.
var (
	ErrPayloadRequired       = errors.New("mqtt3: payload required")
	ErrIncorrectPacketFormat = errors.New("mqtt3: incorrect packet format")
	ErrUnsupportedPacketType = errors.New("mqtt3: unsupported packet type")
	ErrPacketTooLarge        = errors.New("mqtt3: packet exceeds maximum size")
)

// ReadPacket reads one complete MQTT packet from r.
// If maxSize is greater than 0, packets whose remaining length exceeds it
// fail with ErrPacketTooLarge before the body is read.
// Returns the packet and the number of bytes consumed. io.EOF is returned
// unwrapped only when r ends before the first byte of a packet.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	return readPacket(newByteSource(r), maxSize)
}

func readPacket(src *byteSource, maxSize uint32) (Packet, int, error) {
	first, err := src.readByte()
	if err != nil {
		return nil, 0, err
	}
	n := 1

	length, ln, err := decodeRemainingLength(src)
	n += ln
	if err != nil {
		return nil, n, unexpected(err)
	}

	header, err := NewHeader(first, length)
	if err != nil {
		return nil, n, err
	}

	if length == 0 {
		switch header.Type {
		case PacketPINGREQ:
			return &PingreqPacket{}, n, nil
		case PacketPINGRESP:
			return &PingrespPacket{}, n, nil
		default:
			return nil, n, &PacketError{Type: header.Type, Err: ErrPayloadRequired}
		}
	}

	if maxSize > 0 && length > maxSize {
		return nil, n, ErrPacketTooLarge
	}

	body := src.bounded(length)
	pkt, err := decodeBody(body, header)
	n += int(length) - body.remaining()
	if err != nil {
		return nil, n, &PacketError{Type: header.Type, Err: err}
	}

	return pkt, n, nil
}

// decodeBody dispatches to the decoder for the header's packet type.
func decodeBody(body *byteSource, header Header) (Packet, error) {
	var (
		pkt Packet
		err error
	)

	switch header.Type {
	case PacketCONNECT:
		pkt, err = decodeConnect(body)
	case PacketPUBLISH:
		pkt, err = decodePublish(body, header)
	case PacketSUBSCRIBE:
		pkt, err = decodeSubscribe(body, header)
	case PacketUNSUBSCRIBE:
		pkt, err = decodeUnsubscribe(body, header)
	case PacketPINGREQ, PacketPINGRESP:
		return nil, fmt.Errorf("%w: %s carries no body", ErrIncorrectPacketFormat, header.Type)
	default:
		return nil, ErrUnsupportedPacketType
	}
	if err != nil {
		return nil, err
	}

	if left := body.remaining(); left != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrIncorrectPacketFormat, left)
	}

	return pkt, nil
}
