package mqtt3

// PublishPacket represents an MQTT PUBLISH packet.
// MQTT 3.1.1 spec: Section 3.3
type PublishPacket struct {
	// Dup, QoS and Retain come from the fixed header.
	Dup    bool
	QoS    QoS
	Retain bool

	// Topic is the topic name.
	Topic string

	// PacketID is only set when QoS is above at most once.
	PacketID PacketID

	// Payload is the application message. It must not be modified once
	// the packet has been handed to more than one consumer.
	Payload []byte
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPUBLISH
}

// GetPacketID returns the packet identifier.
func (p *PublishPacket) GetPacketID() PacketID {
	return p.PacketID
}

// HasPacketID reports whether the packet carried a packet identifier.
func (p *PublishPacket) HasPacketID() bool {
	return p.QoS != QoSAtMostOnce
}

// decodePublish reads the topic name, the packet identifier when the QoS
// requires one, and takes the rest of the bounded view as payload.
func decodePublish(src *byteSource, header Header) (*PublishPacket, error) {
	qos, err := header.QoS()
	if err != nil {
		return nil, err
	}

	p := &PublishPacket{
		Dup:    header.Dup(),
		QoS:    qos,
		Retain: header.Retain(),
	}

	// Topic Name
	p.Topic, _, err = src.readString()
	if err != nil {
		return nil, err
	}

	// Packet Identifier (only for QoS > 0)
	if p.HasPacketID() {
		id, err := src.readUint16()
		if err != nil {
			return nil, err
		}
		p.PacketID = PacketID(id)
	}

	// Payload
	p.Payload, err = src.readRest()
	if err != nil {
		return nil, err
	}

	return p, nil
}
