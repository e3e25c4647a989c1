package mqtt3

// Packet is the interface that all decoded MQTT control packets implement.
// Decoded packets are never modified after ReadPacket returns, so a single
// value may be shared by any number of readers.
// MQTT 3.1.1 spec: Section 2
type Packet interface {
	// Type returns the packet type.
	Type() PacketType
}

// PacketWithID is implemented by packets that carry a packet identifier.
type PacketWithID interface {
	Packet

	// GetPacketID returns the packet identifier.
	GetPacketID() PacketID

	// HasPacketID reports whether the identifier was present on the wire.
	HasPacketID() bool
}

// PacketID correlates a packet with its acknowledgement.
// Allocation and reuse are the caller's concern.
// MQTT 3.1.1 spec: Section 2.3.1
type PacketID uint16

// PacketError reports a failure while decoding the body of a packet.
type PacketError struct {
	Type PacketType
	Err  error
}

func (e *PacketError) Error() string {
	return "mqtt3: decode " + e.Type.String() + ": " + e.Err.Error()
}

func (e *PacketError) Unwrap() error { return e.Err }
