package mqtt3

// UnsubscribePacket represents an MQTT UNSUBSCRIBE packet.
// MQTT 3.1.1 spec: Section 3.10
type UnsubscribePacket struct {
	PacketID PacketID
	Topics   []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() PacketType { return PacketUNSUBSCRIBE }

// GetPacketID returns the packet identifier.
func (p *UnsubscribePacket) GetPacketID() PacketID { return p.PacketID }

// HasPacketID always returns true; UNSUBSCRIBE carries an identifier.
func (p *UnsubscribePacket) HasPacketID() bool { return true }

// decodeUnsubscribe reads the packet identifier followed by topic filters
// until the remaining length is used up.
func decodeUnsubscribe(src *byteSource, header Header) (*UnsubscribePacket, error) {
	if header.Length < 2 {
		return nil, ErrIncorrectPacketFormat
	}

	id, err := src.readUint16()
	if err != nil {
		return nil, err
	}

	p := &UnsubscribePacket{
		PacketID: PacketID(id),
		Topics:   make([]string, 0, 1),
	}

	left := int(header.Length) - 2
	if left == 0 { // [MQTT-3.10.3-2]
		return nil, ErrIncorrectPacketFormat
	}

	for left > 0 {
		filter, n, err := src.readStringWithin(left)
		if err != nil {
			return nil, err
		}

		left -= n
		p.Topics = append(p.Topics, filter)
	}

	return p, nil
}
