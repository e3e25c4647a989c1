package mqtt3

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICConn wraps the first bidirectional stream of a QUIC connection as a
// net.Conn.
type QUICConn struct {
	conn   *quic.Conn
	stream *quic.Stream
	mu     sync.Mutex
}

// Read reads data from the QUIC stream.
func (c *QUICConn) Read(b []byte) (int, error) {
	return c.stream.Read(b)
}

// Write writes data to the QUIC stream.
func (c *QUICConn) Write(b []byte) (int, error) {
	return c.stream.Write(b)
}

// Close closes the stream and the connection.
func (c *QUICConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stream.Close(); err != nil {
		return err
	}
	return c.conn.CloseWithError(0, "")
}

// LocalAddr returns the local network address.
func (c *QUICConn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *QUICConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline sets the read and write deadlines.
func (c *QUICConn) SetDeadline(t time.Time) error { return c.stream.SetDeadline(t) }

// SetReadDeadline sets the read deadline.
func (c *QUICConn) SetReadDeadline(t time.Time) error { return c.stream.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline.
func (c *QUICConn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

// QUICStreamTimeout bounds how long an accepted QUIC connection may take to
// open its first stream before it is closed.
const QUICStreamTimeout = 10 * time.Second

// QUICListener listens for MQTT connections over QUIC.
// Connections are handed out once their first stream is open; waiting for
// that stream happens per connection, so a silent peer does not hold up
// the others.
type QUICListener struct {
	listener      *quic.Listener
	streamTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan *QUICConn
	done   chan struct{}
	err    error // set before done is closed
}

// NewQUICListener creates a QUIC listener. QUIC always runs over TLS 1.3,
// so tlsConfig is required; the "mqtt" ALPN is added when none is set.
func NewQUICListener(addr string, tlsConfig *tls.Config, quicConfig *quic.Config) (*QUICListener, error) {
	return newQUICListener(addr, tlsConfig, quicConfig, QUICStreamTimeout)
}

func newQUICListener(addr string, tlsConfig *tls.Config, quicConfig *quic.Config, streamTimeout time.Duration) (*QUICListener, error) {
	if tlsConfig == nil {
		return nil, ErrTLSRequired
	}

	tlsConfig = tlsConfig.Clone()
	if tlsConfig.MinVersion < tls.VersionTLS13 {
		tlsConfig.MinVersion = tls.VersionTLS13
	}
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{"mqtt"}
	}

	ql, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &QUICListener{
		listener:      ql,
		streamTimeout: streamTimeout,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan *QUICConn),
		done:          make(chan struct{}),
	}
	go l.acceptLoop()

	return l, nil
}

func (l *QUICListener) acceptLoop() {
	defer close(l.done)

	for {
		conn, err := l.listener.Accept(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				err = net.ErrClosed
			}
			l.err = err
			return
		}
		go l.acceptStream(conn)
	}
}

func (l *QUICListener) acceptStream(conn *quic.Conn) {
	ctx, cancel := context.WithTimeout(l.ctx, l.streamTimeout)
	defer cancel()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to accept stream")
		return
	}

	qc := &QUICConn{conn: conn, stream: stream}
	select {
	case l.ready <- qc:
	case <-l.ctx.Done():
		qc.Close()
	}
}

// Accept waits for the next connection with an open stream.
func (l *QUICListener) Accept(ctx context.Context) (*QUICConn, error) {
	select {
	case conn := <-l.ready:
		return conn, nil
	case <-l.done:
		return nil, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the listener. Connections still waiting for their first
// stream are closed too.
func (l *QUICListener) Close() error {
	l.cancel()
	return l.listener.Close()
}

// Addr returns the listener's network address.
func (l *QUICListener) Addr() net.Addr { return l.listener.Addr() }

// NetListener adapts the listener to net.Listener. Closing the adapter
// cancels pending Accept calls.
func (l *QUICListener) NetListener() net.Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &quicNetListener{quic: l, ctx: ctx, cancel: cancel}
}

type quicNetListener struct {
	quic   *QUICListener
	ctx    context.Context
	cancel context.CancelFunc
}

func (l *quicNetListener) Accept() (net.Conn, error) {
	conn, err := l.quic.Accept(l.ctx)
	if err != nil {
		if l.ctx.Err() != nil {
			return nil, net.ErrClosed
		}
		return nil, err
	}
	return conn, nil
}

func (l *quicNetListener) Close() error {
	l.cancel()
	return l.quic.Close()
}

func (l *quicNetListener) Addr() net.Addr { return l.quic.Addr() }
