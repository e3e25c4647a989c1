package mqtt3

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/mqtt3/mqtt3test"
)

func TestReaderNext(t *testing.T) {
	var stream []byte
	for _, v := range validVectors {
		stream = append(stream, v...)
	}

	metrics := NewMemoryMetrics()
	r := NewReader(mqtt3test.WithBytes(stream), WithMetrics(metrics))

	var types []PacketType
	for {
		pkt, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, pkt.Type())
	}

	assert.Len(t, types, len(validVectors))
	assert.Equal(t, int64(len(stream)), r.BytesRead())
	assert.Equal(t, int64(len(validVectors)), r.Packets())

	snapshot := metrics.Snapshot()
	assert.Equal(t, 2.0, snapshot["mqtt3_packets_decoded_total{type=CONNECT}"])
	assert.Equal(t, 2.0, snapshot["mqtt3_packets_decoded_total{type=PUBLISH}"])
	assert.Equal(t, 1.0, snapshot["mqtt3_packets_decoded_total{type=SUBSCRIBE}"])
	assert.Equal(t, float64(len(validVectors)), snapshot[MetricPacketBytes+"_count"])
	assert.Equal(t, float64(len(stream)), snapshot[MetricPacketBytes])
	assert.Equal(t, float64(len(validVectors)), snapshot[MetricDecodeDuration+"_count"])

	for k := range snapshot {
		assert.NotContains(t, k, MetricDecodeErrors, "clean EOF is not a decode error")
	}
}

func TestReaderDecodeError(t *testing.T) {
	var logs bytes.Buffer
	metrics := NewMemoryMetrics()

	stream := mqtt3test.WithBytes([]byte{0x36, 0x03, 0x00, 0x01, 'a'})
	r := NewReader(stream,
		WithMetrics(metrics),
		WithLogger(NewStdLogger(&logs, LogLevelWarn)),
	)

	pkt, err := r.Next(context.Background())
	assert.Nil(t, pkt)
	assert.ErrorIs(t, err, ErrInvalidQoS)
	assert.Equal(t, int64(0), r.Packets())

	assert.Equal(t, 1.0, metrics.Snapshot()["mqtt3_decode_errors_total{error=invalid_qos}"])
	assert.Contains(t, logs.String(), "[WARN] packet decode failed")
	assert.Contains(t, logs.String(), "invalid QoS level")
}

func TestReaderDebugLogging(t *testing.T) {
	var logs bytes.Buffer
	r := NewReader(mqtt3test.WithBytes(vectorPublishQoS1),
		WithLogger(NewStdLogger(&logs, LogLevelDebug).WithFields(LogFields{LogFieldConnID: "c1"})),
	)

	_, err := r.Next(context.Background())
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "[DEBUG] packet decoded")
	assert.Contains(t, out, "conn_id=c1")
	assert.Contains(t, out, "topic=a/b")
	assert.Contains(t, out, "packet_id=10")
	assert.Contains(t, out, "bytes=13")

	logs.Reset()
	_, err = r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, logs.String())
}

func TestReaderInfoLevelSkipsDebug(t *testing.T) {
	var logs bytes.Buffer
	r := NewReader(mqtt3test.WithBytes(vectorPingreq), WithLogger(NewStdLogger(&logs, LogLevelInfo)))

	_, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs.String())
}

func TestReaderMaxPacketSize(t *testing.T) {
	r := NewReader(mqtt3test.WithBytes(vectorConnectMQTT311), WithMaxPacketSize(16))

	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestReaderRateLimit(t *testing.T) {
	stream := append(bytes.Clone(vectorPingreq), vectorPingreq...)
	r := NewReader(mqtt3test.WithBytes(stream), WithRateLimit(0.001, 1))

	_, err := r.Next(context.Background())
	require.NoError(t, err, "burst allows the first packet")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = r.Next(ctx)
	assert.Error(t, err)
	assert.Equal(t, int64(2), r.BytesRead(), "the limited packet is not read")
}

func TestReaderReusesBufioReader(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader(vectorPingresp))
	r := NewReader(br)

	pkt, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &PingrespPacket{}, pkt)
}

func TestReaderOptions(t *testing.T) {
	tests := []struct {
		name  string
		opt   ReaderOption
		check func(t *testing.T, o *readerOptions)
	}{
		{
			name: "max packet size",
			opt:  WithMaxPacketSize(1024),
			check: func(t *testing.T, o *readerOptions) {
				assert.Equal(t, uint32(1024), o.maxPacketSize)
			},
		},
		{
			name: "max packet size above protocol limit",
			opt:  WithMaxPacketSize(maxRemainingLength + 1),
			check: func(t *testing.T, o *readerOptions) {
				assert.Zero(t, o.maxPacketSize)
			},
		},
		{
			name: "buffer size",
			opt:  WithBufferSize(512),
			check: func(t *testing.T, o *readerOptions) {
				assert.Equal(t, 512, o.bufferSize)
			},
		},
		{
			name: "non-positive buffer size keeps default",
			opt:  WithBufferSize(0),
			check: func(t *testing.T, o *readerOptions) {
				assert.Equal(t, defaultReaderBufferSize, o.bufferSize)
			},
		},
		{
			name: "nil logger keeps default",
			opt:  WithLogger(nil),
			check: func(t *testing.T, o *readerOptions) {
				assert.IsType(t, &NoOpLogger{}, o.logger)
			},
		},
		{
			name: "nil metrics keeps default",
			opt:  WithMetrics(nil),
			check: func(t *testing.T, o *readerOptions) {
				assert.IsType(t, &NoOpMetrics{}, o.metrics)
			},
		},
		{
			name: "rate limit",
			opt:  WithRateLimit(100, 0),
			check: func(t *testing.T, o *readerOptions) {
				assert.InDelta(t, 100.0, float64(o.rateLimit), 0)
				assert.Equal(t, 1, o.rateBurst)
			},
		},
		{
			name: "zero rate disables limiting",
			opt:  WithRateLimit(0, 10),
			check: func(t *testing.T, o *readerOptions) {
				assert.Zero(t, o.rateLimit)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultReaderOptions()
			tt.opt(o)
			tt.check(t, o)
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrMalformedRemainingLength, "malformed_remaining_length"},
		{&PacketError{Type: PacketCONNECT, Err: ErrPayloadRequired}, "payload_required"},
		{ErrInvalidFlags, "invalid_flags"},
		{&PacketError{Type: PacketSUBSCRIBE, Err: ErrIncorrectPacketFormat}, "incorrect_packet_format"},
		{fmt.Errorf("%w: reserved code 0", ErrUnsupportedPacketType), "unsupported_packet_type"},
		{&PacketError{Type: PacketPUBLISH, Err: ErrInvalidQoS}, "invalid_qos"},
		{ErrInvalidProtocol, "invalid_protocol"},
		{ErrInvalidUTF8, "invalid_utf8"},
		{ErrPacketTooLarge, "packet_too_large"},
		{io.ErrUnexpectedEOF, "io"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), fmt.Sprint(tt.err))
	}
}

func TestPacketFields(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
		want LogFields
	}{
		{
			name: "connect",
			pkt:  &ConnectPacket{Protocol: ProtocolMQTT311, KeepAlive: 10, ClientID: "c"},
			want: LogFields{
				LogFieldPacketType: "CONNECT",
				LogFieldClientID:   "c",
				LogFieldProtocol:   "MQTT/4",
				LogFieldKeepAlive:  uint16(10),
			},
		},
		{
			name: "publish QoS 0",
			pkt:  &PublishPacket{Topic: "t", Payload: []byte{1}},
			want: LogFields{
				LogFieldPacketType:  "PUBLISH",
				LogFieldTopic:       "t",
				LogFieldQoS:         byte(0),
				LogFieldPayloadSize: 1,
			},
		},
		{
			name: "publish QoS 1",
			pkt:  &PublishPacket{QoS: QoSAtLeastOnce, Topic: "t", PacketID: 5},
			want: LogFields{
				LogFieldPacketType:  "PUBLISH",
				LogFieldTopic:       "t",
				LogFieldQoS:         byte(1),
				LogFieldPacketID:    uint16(5),
				LogFieldPayloadSize: 0,
			},
		},
		{
			name: "subscribe",
			pkt:  &SubscribePacket{PacketID: 2, Topics: []TopicSubscription{{Filter: "a"}, {Filter: "b"}}},
			want: LogFields{
				LogFieldPacketType: "SUBSCRIBE",
				LogFieldPacketID:   uint16(2),
				LogFieldTopics:     2,
			},
		},
		{
			name: "unsubscribe",
			pkt:  &UnsubscribePacket{PacketID: 3, Topics: []string{"a"}},
			want: LogFields{
				LogFieldPacketType: "UNSUBSCRIBE",
				LogFieldPacketID:   uint16(3),
				LogFieldTopics:     1,
			},
		},
		{
			name: "pingreq",
			pkt:  &PingreqPacket{},
			want: LogFields{LogFieldPacketType: "PINGREQ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PacketFields(tt.pkt))
		})
	}
}
