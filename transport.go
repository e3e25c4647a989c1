package mqtt3

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/netutil"
)

// Transport errors.
var (
	ErrUnsupportedScheme = errors.New("mqtt3: unsupported listener scheme")
	ErrTLSRequired       = errors.New("mqtt3: TLS configuration is required")
)

// Listen opens a listener for the given URL. Every accepted connection is
// a byte source ReadPacket and Reader can decode from.
//
// Supported schemes:
//
//	tcp://host:port
//	tls://host:port     (requires tlsConfig)
//	unix:///path/to.sock
//	quic://host:port    (requires tlsConfig)
//	ws://host:port/path
//	wss://host:port/path (requires tlsConfig)
func Listen(rawURL string, tlsConfig *tls.Config) (net.Listener, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listener URL %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		return net.Listen("tcp", u.Host)
	case "tls", "ssl", "mqtts":
		if tlsConfig == nil {
			return nil, ErrTLSRequired
		}
		return tls.Listen("tcp", u.Host, tlsConfig)
	case "unix":
		return NewUnixListener(u.Path)
	case "quic":
		l, err := NewQUICListener(u.Host, tlsConfig, nil)
		if err != nil {
			return nil, err
		}
		return l.NetListener(), nil
	case "ws":
		return NewWSListener(u.Host, wsPath(u), nil)
	case "wss":
		if tlsConfig == nil {
			return nil, ErrTLSRequired
		}
		return NewWSListener(u.Host, wsPath(u), tlsConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// LimitListener returns a listener that accepts at most n simultaneous
// connections. n <= 0 returns l unchanged.
func LimitListener(l net.Listener, n int) net.Listener {
	if n <= 0 {
		return l
	}
	return netutil.LimitListener(l, n)
}

func wsPath(u *url.URL) string {
	if u.Path == "" {
		return "/mqtt"
	}
	return u.Path
}
