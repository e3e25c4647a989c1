// Package mqtt3test provides helpers for testing code built on mqtt3.
package mqtt3test

import (
	"bytes"
	"io"
	"sync"
)

// MockStream is an in-memory duplex stream. Reads drain the read side,
// writes append to the write side. It is safe for concurrent use and a
// single *MockStream may be shared between the code under test and the
// test that scripts it.
type MockStream struct {
	mu     sync.Mutex
	reader *bytes.Reader
	writer bytes.Buffer
	closed bool
}

// NewMockStream returns a stream with nothing to read.
func NewMockStream() *MockStream {
	return WithBytes(nil)
}

// WithBytes returns a stream whose read side holds b.
func WithBytes(b []byte) *MockStream {
	return &MockStream{reader: bytes.NewReader(bytes.Clone(b))}
}

// Read reads from the read side. It returns io.EOF once the injected
// bytes are exhausted or the stream is closed.
func (s *MockStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.EOF
	}
	return s.reader.Read(p)
}

// ReadByte reads a single byte from the read side.
func (s *MockStream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.EOF
	}
	return s.reader.ReadByte()
}

// Write appends p to the write side.
func (s *MockStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.writer.Write(p)
}

// Close makes further reads return io.EOF and writes fail.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// NextBytes replaces the read side with b, discarding anything unread.
func (s *MockStream) NextBytes(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reader.Reset(bytes.Clone(b))
}

// TakeBytes returns everything written so far and clears the write side.
func (s *MockStream) TakeBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := bytes.Clone(s.writer.Bytes())
	s.writer.Reset()
	return b
}

// Swap exchanges the two sides: what was written becomes readable and
// the full contents of the read side become the written bytes. Both
// sides are rewound.
func (s *MockStream) Swap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := bytes.Clone(s.writer.Bytes())

	s.writer.Reset()
	s.reader.Seek(0, io.SeekStart)
	s.reader.WriteTo(&s.writer)

	s.reader.Reset(written)
}
