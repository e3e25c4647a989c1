package mqtt3

// PingreqPacket represents an MQTT PINGREQ packet.
// MQTT 3.1.1 spec: Section 3.12
type PingreqPacket struct{}

// Type returns the packet type.
func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

// PingrespPacket represents an MQTT PINGRESP packet.
// MQTT 3.1.1 spec: Section 3.13
type PingrespPacket struct{}

// Type returns the packet type.
func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }
