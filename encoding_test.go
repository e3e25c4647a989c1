package mqtt3

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSourceReadString(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantN   int
		wantErr error
	}{
		{"empty string", []byte{0x00, 0x00}, "", 2, nil},
		{"ascii", []byte{0x00, 0x03, 'a', '/', 'b'}, "a/b", 5, nil},
		{"multibyte", []byte{0x00, 0x02, 0xC3, 0xA9}, "é", 4, nil},
		{"invalid utf8", []byte{0x00, 0x02, 0xC3, 0x28}, "", 4, ErrInvalidUTF8},
		{"truncated prefix", []byte{0x00}, "", 0, io.ErrUnexpectedEOF},
		{"no prefix", nil, "", 0, io.ErrUnexpectedEOF},
		{"truncated content", []byte{0x00, 0x05, 'a', 'b'}, "", 2, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, n, err := newByteSource(bytes.NewReader(tt.data)).readString()
			assert.Equal(t, tt.wantN, n)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestByteSourceReadStringWithin(t *testing.T) {
	data := []byte{0x00, 0x03, 'a', '/', 'b'}

	tests := []struct {
		name    string
		budget  int
		wantErr error
	}{
		{"exact", 5, nil},
		{"larger", 100, nil},
		{"unbounded", -1, nil},
		{"one short", 4, ErrIncorrectPacketFormat},
		{"no room for prefix", 1, ErrIncorrectPacketFormat},
		{"zero", 0, ErrIncorrectPacketFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, err := newByteSource(bytes.NewReader(data)).readStringWithin(tt.budget)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a/b", s)
		})
	}
}

func TestByteSourceOversizedStringReadsNoContent(t *testing.T) {
	r := bytes.NewReader([]byte{0xFF, 0xFF, 'a', 'b', 'c'})
	_, n, err := newByteSource(r).readStringWithin(5)

	assert.ErrorIs(t, err, ErrIncorrectPacketFormat)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, r.Len())
}

func TestByteSourceBounded(t *testing.T) {
	src := newByteSource(bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05}))
	assert.Equal(t, -1, src.remaining())

	view := src.bounded(3)
	assert.Equal(t, 3, view.remaining())

	b, err := view.readByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	v, err := view.readUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), v)
	assert.Equal(t, 0, view.remaining())

	_, err = view.readByte()
	assert.ErrorIs(t, err, io.EOF)

	// The bytes past the view still belong to the parent.
	b, err = src.readByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), b)
}

func TestByteSourceBoundedReadUint16PastEnd(t *testing.T) {
	src := newByteSource(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
	view := src.bounded(1)

	_, err := view.readUint16()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestByteSourceReadRest(t *testing.T) {
	t.Run("bounded", func(t *testing.T) {
		src := newByteSource(bytes.NewReader([]byte{1, 2, 3, 4}))
		rest, err := src.bounded(3).readRest()
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, rest)
	})

	t.Run("empty view", func(t *testing.T) {
		src := newByteSource(bytes.NewReader([]byte{1}))
		rest, err := src.bounded(0).readRest()
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.NotNil(t, rest)
	})

	t.Run("short source", func(t *testing.T) {
		src := newByteSource(bytes.NewReader([]byte{1, 2}))
		_, err := src.bounded(5).readRest()
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("one byte at a time", func(t *testing.T) {
		src := newByteSource(iotest.OneByteReader(bytes.NewReader([]byte{1, 2, 3})))
		rest, err := src.bounded(3).readRest()
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, rest)
	})
}

func TestByteSourceWithoutByteReader(t *testing.T) {
	// iotest.OneByteReader hides io.ByteReader.
	src := newByteSource(iotest.OneByteReader(bytes.NewReader([]byte{0xAB})))
	assert.Nil(t, src.br)

	b, err := src.readByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b)

	_, err = src.readByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnexpected(t *testing.T) {
	assert.Equal(t, io.ErrUnexpectedEOF, unexpected(io.EOF))
	assert.Equal(t, io.ErrUnexpectedEOF, unexpected(io.ErrUnexpectedEOF))
	assert.Equal(t, ErrInvalidQoS, unexpected(ErrInvalidQoS))
}
