package mqtt3

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// Reader decodes a stream of MQTT packets from a single source.
// A Reader is not safe for concurrent use.
type Reader struct {
	src       *byteSource
	opts      *readerOptions
	limiter   *rate.Limiter
	bytesRead int64
	packets   int64
}

// NewReader creates a Reader on top of r. Unless r already is a
// *bufio.Reader it is wrapped in one.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	o := defaultReaderOptions()
	for _, opt := range opts {
		opt(o)
	}

	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, o.bufferSize)
	}

	reader := &Reader{
		src:  newByteSource(br),
		opts: o,
	}
	if o.rateLimit > 0 {
		reader.limiter = rate.NewLimiter(o.rateLimit, o.rateBurst)
	}

	return reader
}

// Next decodes the next packet. ctx only bounds the wait imposed by the
// rate limit; read deadlines belong on the underlying source.
// io.EOF is returned when the source ends cleanly between packets.
func (r *Reader) Next(ctx context.Context) (Packet, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	pkt, n, err := readPacket(r.src, r.opts.maxPacketSize)
	r.bytesRead += int64(n)

	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		r.opts.metrics.Counter(MetricDecodeErrors, MetricLabels{"error": ErrorKind(err)}).Inc()
		r.opts.logger.Warn("packet decode failed", LogFields{
			LogFieldError: err.Error(),
			LogFieldBytes: n,
		})
		return nil, err
	}

	r.packets++
	r.opts.metrics.Counter(MetricPacketsDecoded, MetricLabels{"type": pkt.Type().String()}).Inc()
	r.opts.metrics.Histogram(MetricPacketBytes, nil).Observe(float64(n))
	r.opts.metrics.Histogram(MetricDecodeDuration, nil).ObserveDuration(time.Since(start))

	if r.opts.logger.Level() <= LogLevelDebug {
		fields := PacketFields(pkt)
		fields[LogFieldBytes] = n
		r.opts.logger.Debug("packet decoded", fields)
	}

	return pkt, nil
}

// BytesRead returns the number of bytes consumed so far.
func (r *Reader) BytesRead() int64 { return r.bytesRead }

// Packets returns the number of packets decoded so far.
func (r *Reader) Packets() int64 { return r.packets }

// ErrorKind classifies a decode error into a short stable name suitable
// for metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRemainingLength):
		return "malformed_remaining_length"
	case errors.Is(err, ErrPayloadRequired):
		return "payload_required"
	case errors.Is(err, ErrInvalidFlags):
		return "invalid_flags"
	case errors.Is(err, ErrIncorrectPacketFormat):
		return "incorrect_packet_format"
	case errors.Is(err, ErrUnsupportedPacketType):
		return "unsupported_packet_type"
	case errors.Is(err, ErrInvalidQoS):
		return "invalid_qos"
	case errors.Is(err, ErrInvalidProtocol):
		return "invalid_protocol"
	case errors.Is(err, ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(err, ErrPacketTooLarge):
		return "packet_too_large"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return "io"
	default:
		return "other"
	}
}

// PacketFields returns the log fields describing a decoded packet.
func PacketFields(pkt Packet) LogFields {
	fields := LogFields{LogFieldPacketType: pkt.Type().String()}

	if p, ok := pkt.(PacketWithID); ok && p.HasPacketID() {
		fields[LogFieldPacketID] = uint16(p.GetPacketID())
	}

	switch p := pkt.(type) {
	case *ConnectPacket:
		fields[LogFieldClientID] = p.ClientID
		fields[LogFieldProtocol] = p.Protocol.String()
		fields[LogFieldKeepAlive] = p.KeepAlive
	case *PublishPacket:
		fields[LogFieldTopic] = p.Topic
		fields[LogFieldQoS] = byte(p.QoS)
		fields[LogFieldPayloadSize] = len(p.Payload)
	case *SubscribePacket:
		fields[LogFieldTopics] = len(p.Topics)
	case *UnsubscribePacket:
		fields[LogFieldTopics] = len(p.Topics)
	}

	return fields
}
