package mqtt3

// TopicSubscription is a topic filter with the QoS requested for it.
type TopicSubscription struct {
	Filter string
	QoS    QoS
}

// SubscribePacket represents an MQTT SUBSCRIBE packet.
// Topics keep wire order, duplicates included.
// MQTT 3.1.1 spec: Section 3.8
type SubscribePacket struct {
	PacketID PacketID
	Topics   []TopicSubscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

// GetPacketID returns the packet identifier.
func (p *SubscribePacket) GetPacketID() PacketID { return p.PacketID }

// HasPacketID always returns true; SUBSCRIBE carries an identifier.
func (p *SubscribePacket) HasPacketID() bool { return true }

// decodeSubscribe reads the packet identifier followed by topic filter and
// requested QoS pairs until the remaining length is used up.
func decodeSubscribe(src *byteSource, header Header) (*SubscribePacket, error) {
	if header.Length < 2 {
		return nil, ErrIncorrectPacketFormat
	}

	id, err := src.readUint16()
	if err != nil {
		return nil, err
	}

	p := &SubscribePacket{
		PacketID: PacketID(id),
		Topics:   make([]TopicSubscription, 0, 1),
	}

	left := int(header.Length) - 2
	if left == 0 { // [MQTT-3.8.3-3]
		return nil, ErrIncorrectPacketFormat
	}

	for left > 0 {
		// Leave room for the requested QoS byte.
		filter, n, err := src.readStringWithin(left - 1)
		if err != nil {
			return nil, err
		}

		b, err := src.readByte()
		if err != nil {
			return nil, unexpected(err)
		}
		qos, err := QoSFromByte(b)
		if err != nil {
			return nil, err
		}

		left -= n + 1
		p.Topics = append(p.Topics, TopicSubscription{Filter: filter, QoS: qos})
	}

	return p, nil
}
