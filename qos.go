package mqtt3

import "errors"

// ErrInvalidQoS is returned for the QoS bit pattern 11 and for any
// requested QoS byte outside 0-2.
var ErrInvalidQoS = errors.New("mqtt3: invalid QoS level")

// QoS is the delivery guarantee of an application message.
// MQTT 3.1.1 spec: Section 4.3
type QoS byte

const (
	// QoSAtMostOnce delivers a message at most once.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce delivers a message at least once.
	QoSAtLeastOnce QoS = 1
	// QoSExactlyOnce delivers a message exactly once.
	QoSExactlyOnce QoS = 2
)

// QoSFromByte converts a raw value into a QoS level.
func QoSFromByte(b byte) (QoS, error) {
	if b > byte(QoSExactlyOnce) {
		return 0, ErrInvalidQoS
	}
	return QoS(b), nil
}

// String returns the string representation of the QoS level.
func (q QoS) String() string {
	switch q {
	case QoSAtMostOnce:
		return "at most once"
	case QoSAtLeastOnce:
		return "at least once"
	case QoSExactlyOnce:
		return "exactly once"
	default:
		return "invalid"
	}
}
