package mqtt3

// Connect flag bits.
const (
	connectFlagReserved     = 0x01
	connectFlagCleanSession = 0x02
	connectFlagWill         = 0x04
	connectFlagWillQoS      = 0x18
	connectFlagWillRetain   = 0x20
	connectFlagPassword     = 0x40
	connectFlagUsername     = 0x80
)

// LastWill is the message a client asks the server to publish when the
// connection is lost without a DISCONNECT.
// MQTT 3.1.1 spec: Section 3.1.2.5
type LastWill struct {
	Topic   string
	Message string
	QoS     QoS
	Retain  bool
}

// ConnectPacket represents an MQTT CONNECT packet.
// MQTT 3.1.1 spec: Section 3.1
type ConnectPacket struct {
	// Protocol is the protocol name and level.
	Protocol Protocol

	// KeepAlive is the keep alive interval in seconds.
	KeepAlive uint16

	// ClientID is the client identifier.
	ClientID string

	// CleanSession asks the server to discard any previous session.
	CleanSession bool

	// LastWill is nil unless the will flag was set.
	LastWill *LastWill

	// UsernameFlag reports whether Username was present on the wire.
	UsernameFlag bool
	Username     string

	// PasswordFlag reports whether Password was present on the wire.
	PasswordFlag bool
	Password     string
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketCONNECT
}

// decodeConnect reads the variable header and payload of a CONNECT packet.
func decodeConnect(src *byteSource) (*ConnectPacket, error) {
	p := &ConnectPacket{}

	// Protocol Name and Level
	name, _, err := src.readString()
	if err != nil {
		return nil, err
	}
	level, err := src.readByte()
	if err != nil {
		return nil, unexpected(err)
	}
	p.Protocol, err = NewProtocol(name, level)
	if err != nil {
		return nil, err
	}

	// Connect Flags
	flags, err := src.readByte()
	if err != nil {
		return nil, unexpected(err)
	}
	if flags&connectFlagReserved != 0 { // [MQTT-3.1.2-3]
		return nil, ErrIncorrectPacketFormat
	}
	p.CleanSession = flags&connectFlagCleanSession != 0
	p.UsernameFlag = flags&connectFlagUsername != 0
	p.PasswordFlag = flags&connectFlagPassword != 0

	// Keep Alive
	p.KeepAlive, err = src.readUint16()
	if err != nil {
		return nil, err
	}

	// Client Identifier
	p.ClientID, _, err = src.readString()
	if err != nil {
		return nil, err
	}

	// Will Topic and Will Message
	if flags&connectFlagWill != 0 {
		will := &LastWill{Retain: flags&connectFlagWillRetain != 0}
		will.Topic, _, err = src.readString()
		if err != nil {
			return nil, err
		}
		will.Message, _, err = src.readString()
		if err != nil {
			return nil, err
		}
		will.QoS, err = QoSFromByte((flags & connectFlagWillQoS) >> 3)
		if err != nil {
			return nil, err
		}
		p.LastWill = will
	} else if flags&(connectFlagWillQoS|connectFlagWillRetain) != 0 { // [MQTT-3.1.2-13] [MQTT-3.1.2-15]
		return nil, ErrIncorrectPacketFormat
	}

	// Username
	if p.UsernameFlag {
		p.Username, _, err = src.readString()
		if err != nil {
			return nil, err
		}
	}

	// Password
	if p.PasswordFlag {
		p.Password, _, err = src.readString()
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}
