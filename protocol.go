package mqtt3

import (
	"errors"
	"fmt"
)

// ErrInvalidProtocol is returned when a CONNECT packet names a protocol
// name and level pair this package does not speak.
var ErrInvalidProtocol = errors.New("mqtt3: invalid protocol")

// Protocol names and levels accepted in CONNECT.
const (
	ProtocolNameMQIsdp = "MQIsdp"
	ProtocolNameMQTT   = "MQTT"

	ProtocolLevel31  byte = 3
	ProtocolLevel311 byte = 4
)

// Protocol identifies the protocol revision a client connected with.
// MQTT 3.1.1 spec: Section 3.1.2.1, 3.1.2.2
type Protocol struct {
	Name  string
	Level byte
}

var (
	// ProtocolMQTT31 is MQTT 3.1.
	ProtocolMQTT31 = Protocol{Name: ProtocolNameMQIsdp, Level: ProtocolLevel31}
	// ProtocolMQTT311 is MQTT 3.1.1.
	ProtocolMQTT311 = Protocol{Name: ProtocolNameMQTT, Level: ProtocolLevel311}
)

// NewProtocol validates a protocol name and level pair.
func NewProtocol(name string, level byte) (Protocol, error) {
	p := Protocol{Name: name, Level: level}
	switch p {
	case ProtocolMQTT31, ProtocolMQTT311:
		return p, nil
	default:
		return Protocol{}, fmt.Errorf("%w: %q level %d", ErrInvalidProtocol, name, level)
	}
}

// String returns the protocol as name/level, e.g. "MQTT/4".
func (p Protocol) String() string {
	return fmt.Sprintf("%s/%d", p.Name, p.Level)
}
