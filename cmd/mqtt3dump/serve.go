package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/vitalvas/mqtt3"
)

// connClosed is dispatched after the last packet of a connection. It
// travels the connection's queue, so handlers see it after every packet
// read before it.
type connClosed struct{}

func (connClosed) Type() mqtt3.PacketType { return 0 }

type connInfo struct {
	conn       net.Conn
	remoteAddr string
	listener   string
}

type server struct {
	cfg        Config
	tlsConfig  *tls.Config
	logger     mqtt3.Logger
	metrics    *mqtt3.MemoryMetrics
	dispatcher *mqtt3.Dispatcher
	capture    *CaptureWriter

	mu        sync.Mutex
	conns     map[string]*connInfo // open connections
	addrs     map[string]string    // remote address until the close marker is handled
	listeners []net.Listener
	wg        sync.WaitGroup
}

func newServer(cfg Config, tlsConfig *tls.Config, logger mqtt3.Logger, capture *CaptureWriter) *server {
	metrics := mqtt3.NewMemoryMetrics()

	s := &server{
		cfg:        cfg,
		tlsConfig:  tlsConfig,
		logger:     logger,
		metrics:    metrics,
		dispatcher: mqtt3.NewDispatcher(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, metrics),
		capture:    capture,
		conns:      make(map[string]*connInfo),
		addrs:      make(map[string]string),
	}

	s.dispatcher.Subscribe(mqtt3.HandlerFunc(s.logPacket))
	if capture != nil {
		s.dispatcher.Subscribe(mqtt3.HandlerFunc(s.capturePacket))
	}
	s.dispatcher.Subscribe(mqtt3.HandlerFunc(s.forgetConn))

	return s
}

// listen opens every configured listener. Listeners already opened are
// closed again on failure.
func (s *server) listen() error {
	for _, rawURL := range s.cfg.Listeners {
		l, err := mqtt3.Listen(rawURL, s.tlsConfig)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listen %s: %w", rawURL, err)
		}

		s.mu.Lock()
		s.listeners = append(s.listeners, mqtt3.LimitListener(l, s.cfg.MaxConns))
		s.mu.Unlock()

		s.logger.Info("listening", mqtt3.LogFields{
			mqtt3.LogFieldListener:   rawURL,
			mqtt3.LogFieldRemoteAddr: l.Addr().String(),
		})
	}
	return nil
}

// serve accepts connections on the opened listeners until ctx is done,
// then closes every listener and connection and waits for queued packets
// to be handled.
func (s *server) serve(ctx context.Context) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	var acceptWG sync.WaitGroup
	for i, l := range listeners {
		acceptWG.Add(1)
		go func() {
			defer acceptWG.Done()
			s.acceptLoop(ctx, l, s.cfg.Listeners[i])
		}()
	}

	<-ctx.Done()

	s.closeListeners()
	acceptWG.Wait()
	s.closeConns()
	s.wg.Wait()
	s.dispatcher.Close()

	s.logMetrics()
}

func (s *server) acceptLoop(ctx context.Context, l net.Listener, name string) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", mqtt3.LogFields{
				mqtt3.LogFieldListener: name,
				mqtt3.LogFieldError:    err.Error(),
			})
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn, name)
		}()
	}
}

func (s *server) handleConn(ctx context.Context, conn net.Conn, listener string) {
	id := xid.New().String()
	info := &connInfo{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		listener:   listener,
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[id] = info
	s.addrs[id] = info.remoteAddr
	s.mu.Unlock()

	gauge := s.metrics.Gauge(mqtt3.MetricConnections, nil)
	gauge.Inc()

	logger := s.logger.WithFields(mqtt3.LogFields{
		mqtt3.LogFieldConnID:     id,
		mqtt3.LogFieldRemoteAddr: info.remoteAddr,
		mqtt3.LogFieldListener:   listener,
	})
	logger.Info("connection opened", nil)

	defer func() {
		conn.Close()
		gauge.Dec()

		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()

		if err := s.dispatcher.Dispatch(context.Background(), id, connClosed{}); err != nil {
			s.forgetConn(id, connClosed{})
		}
	}()

	opts := []mqtt3.ReaderOption{
		mqtt3.WithLogger(logger),
		mqtt3.WithMetrics(s.metrics),
		mqtt3.WithMaxPacketSize(s.cfg.MaxPacketSize),
	}
	if s.cfg.RateLimit > 0 {
		opts = append(opts, mqtt3.WithRateLimit(s.cfg.RateLimit, s.cfg.RateBurst))
	}
	reader := mqtt3.NewReader(conn, opts...)

	for {
		pkt, err := reader.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("connection closed", mqtt3.LogFields{
					"packets":           reader.Packets(),
					mqtt3.LogFieldBytes: reader.BytesRead(),
				})
			case ctx.Err() != nil || errors.Is(err, net.ErrClosed):
			default:
				// The stream position is unknown after a decode failure.
				logger.Warn("closing connection", mqtt3.LogFields{
					mqtt3.LogFieldError: err.Error(),
				})
			}
			return
		}

		if err := s.dispatcher.Dispatch(ctx, id, pkt); err != nil {
			return
		}
	}
}

func (s *server) remoteAddr(connID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[connID]
}

func (s *server) logPacket(connID string, pkt mqtt3.Packet) {
	if _, ok := pkt.(connClosed); ok {
		return
	}

	fields := mqtt3.PacketFields(pkt)
	fields[mqtt3.LogFieldConnID] = connID
	fields[mqtt3.LogFieldRemoteAddr] = s.remoteAddr(connID)
	s.logger.Info("packet", fields)
}

func (s *server) capturePacket(connID string, pkt mqtt3.Packet) {
	if _, ok := pkt.(connClosed); ok {
		return
	}

	rec := NewCaptureRecord(time.Now(), connID, s.remoteAddr(connID), pkt)
	if err := s.capture.Write(rec); err != nil {
		s.logger.Error("capture write failed", mqtt3.LogFields{
			mqtt3.LogFieldConnID: connID,
			mqtt3.LogFieldError:  err.Error(),
		})
	}
}

func (s *server) forgetConn(connID string, pkt mqtt3.Packet) {
	if _, ok := pkt.(connClosed); !ok {
		return
	}

	s.mu.Lock()
	delete(s.addrs, connID)
	s.mu.Unlock()
}

func (s *server) closeListeners() {
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
}

func (s *server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, info := range s.conns {
		info.conn.Close()
	}
}

func (s *server) logMetrics() {
	snapshot := s.metrics.Snapshot()

	fields := make(mqtt3.LogFields, len(snapshot))
	for k, v := range snapshot {
		fields[k] = v
	}
	s.logger.Info("metrics", fields)
}
