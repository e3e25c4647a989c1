package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/vitalvas/mqtt3"
)

var (
	captureEncMode cbor.EncMode
	captureDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	captureEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	captureDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture decoder mode: %v", err))
	}
}

// CaptureRecord is one decoded packet as stored in a capture file.
type CaptureRecord struct {
	Timestamp  time.Time `cbor:"1,keyasint"`
	ConnID     string    `cbor:"2,keyasint"`
	RemoteAddr string    `cbor:"3,keyasint,omitempty"`
	PacketType string    `cbor:"4,keyasint"`
	ClientID   string    `cbor:"5,keyasint,omitempty"`
	Protocol   string    `cbor:"6,keyasint,omitempty"`
	Topic      string    `cbor:"7,keyasint,omitempty"`
	Topics     []string  `cbor:"8,keyasint,omitempty"`
	PacketID   uint16    `cbor:"9,keyasint,omitempty"`
	QoS        uint8     `cbor:"10,keyasint,omitempty"`
	Payload    []byte    `cbor:"11,keyasint,omitempty"`
}

// NewCaptureRecord summarizes pkt.
func NewCaptureRecord(ts time.Time, connID, remoteAddr string, pkt mqtt3.Packet) CaptureRecord {
	rec := CaptureRecord{
		Timestamp:  ts,
		ConnID:     connID,
		RemoteAddr: remoteAddr,
		PacketType: pkt.Type().String(),
	}

	if p, ok := pkt.(mqtt3.PacketWithID); ok && p.HasPacketID() {
		rec.PacketID = uint16(p.GetPacketID())
	}

	switch p := pkt.(type) {
	case *mqtt3.ConnectPacket:
		rec.ClientID = p.ClientID
		rec.Protocol = p.Protocol.String()
	case *mqtt3.PublishPacket:
		rec.Topic = p.Topic
		rec.QoS = uint8(p.QoS)
		rec.Payload = p.Payload
	case *mqtt3.SubscribePacket:
		for _, t := range p.Topics {
			rec.Topics = append(rec.Topics, t.Filter)
		}
	case *mqtt3.UnsubscribePacket:
		rec.Topics = append(rec.Topics, p.Topics...)
	}

	return rec
}

// String formats the record as a single line.
func (r CaptureRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s", r.Timestamp.Format(time.RFC3339Nano), r.ConnID, r.RemoteAddr, r.PacketType)

	if r.ClientID != "" {
		fmt.Fprintf(&b, " client_id=%s", r.ClientID)
	}
	if r.Protocol != "" {
		fmt.Fprintf(&b, " protocol=%s", r.Protocol)
	}
	if r.Topic != "" {
		fmt.Fprintf(&b, " topic=%s qos=%d", r.Topic, r.QoS)
	}
	if r.PacketID != 0 {
		fmt.Fprintf(&b, " packet_id=%d", r.PacketID)
	}
	if len(r.Topics) > 0 {
		fmt.Fprintf(&b, " topics=%s", strings.Join(r.Topics, ","))
	}
	if len(r.Payload) > 0 {
		fmt.Fprintf(&b, " payload_size=%d", len(r.Payload))
	}

	return b.String()
}

// CaptureWriter appends records to a capture file.
// It is safe for concurrent use.
type CaptureWriter struct {
	mu      sync.Mutex
	w       io.WriteCloser
	encoder *cbor.Encoder
	closed  bool
}

// NewCaptureWriter opens path for appending, creating it if needed.
func NewCaptureWriter(path string) (*CaptureWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return &CaptureWriter{
		w:       f,
		encoder: captureEncMode.NewEncoder(f),
	}, nil
}

// Write appends rec. Writes after Close are ignored.
func (c *CaptureWriter) Write(rec CaptureRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	return c.encoder.Encode(rec)
}

// Close closes the file. It is safe to call Close more than once.
func (c *CaptureWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}

// CaptureReader streams records back from a capture file.
type CaptureReader struct {
	closer  io.Closer
	decoder *cbor.Decoder
}

// OpenCapture opens a capture file for reading.
func OpenCapture(path string) (*CaptureReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return &CaptureReader{
		closer:  f,
		decoder: captureDecMode.NewDecoder(f),
	}, nil
}

// Next returns the next record, or io.EOF after the last one.
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.decoder.Decode(&rec); err != nil {
		return CaptureRecord{}, err
	}
	return rec, nil
}

// Close closes the file.
func (c *CaptureReader) Close() error {
	return c.closer.Close()
}

// replay prints every record of the capture file at path to w.
func replay(path string, w io.Writer) (int, error) {
	r, err := OpenCapture(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("record %d: %w", n+1, err)
		}
		fmt.Fprintln(w, rec.String())
		n++
	}
}
