package mqtt3

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when a string field is not well-formed UTF-8.
var ErrInvalidUTF8 = errors.New("mqtt3: invalid UTF-8 string")

// byteSource is the read side every decoder works against: sequential byte
// reads, big-endian integers, and views bounded to a packet's length.
type byteSource struct {
	r     io.Reader
	br    io.ByteReader
	limit *io.LimitedReader // nil for an unbounded source
	buf   [2]byte
}

func newByteSource(r io.Reader) *byteSource {
	s := &byteSource{r: r}
	if br, ok := r.(io.ByteReader); ok {
		s.br = br
	}
	return s
}

// bounded returns a view that yields at most n more bytes of the source.
// Reads past n fail with io.ErrUnexpectedEOF even when the underlying
// stream already holds the next packet.
func (s *byteSource) bounded(n uint32) *byteSource {
	lr := &io.LimitedReader{R: s.r, N: int64(n)}
	return &byteSource{r: lr, limit: lr}
}

// remaining returns the bytes left in a bounded view, or -1 when unbounded.
func (s *byteSource) remaining() int {
	if s.limit == nil {
		return -1
	}
	return int(s.limit.N)
}

func (s *byteSource) readByte() (byte, error) {
	if s.br != nil {
		return s.br.ReadByte()
	}
	if _, err := io.ReadFull(s.r, s.buf[:1]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}

// readUint16 reads a big-endian two byte integer.
func (s *byteSource) readUint16() (uint16, error) {
	if _, err := io.ReadFull(s.r, s.buf[:2]); err != nil {
		return 0, unexpected(err)
	}
	return binary.BigEndian.Uint16(s.buf[:2]), nil
}

// readFull reads exactly n bytes.
func (s *byteSource) readFull(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, unexpected(err)
	}
	return buf, nil
}

// readRest reads everything left in a bounded view.
func (s *byteSource) readRest() ([]byte, error) {
	want := s.remaining()
	if want <= 0 {
		return []byte{}, nil
	}
	buf, err := io.ReadAll(s.r)
	if err != nil {
		return nil, err
	}
	// LimitedReader reports a short underlying stream as a plain EOF.
	if len(buf) != want {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}

// readString reads a UTF-8 string with 2-byte length prefix.
// Returns the string and the number of bytes consumed including the prefix.
// MQTT 3.1.1 spec: Section 1.5.3
func (s *byteSource) readString() (string, int, error) {
	return s.readStringWithin(-1)
}

// readStringWithin is readString with an upper bound on the encoded size.
// A declared length that would exceed budget fails before any content is
// read. A negative budget disables the check.
func (s *byteSource) readStringWithin(budget int) (string, int, error) {
	if budget >= 0 && budget < 2 {
		return "", 0, ErrIncorrectPacketFormat
	}

	length, err := s.readUint16()
	if err != nil {
		return "", 0, err
	}

	size := 2 + int(length)
	if budget >= 0 && size > budget {
		return "", 2, ErrIncorrectPacketFormat
	}

	buf, err := s.readFull(int(length))
	if err != nil {
		return "", 2, err
	}

	if !utf8.Valid(buf) {
		return "", size, ErrInvalidUTF8
	}

	return string(buf), size, nil
}

// unexpected turns a clean EOF inside a field into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
