package mqtt3

import (
	"errors"
	"io/fs"
	"net"
	"os"
)

// UnixListener listens for connections on a Unix domain socket.
type UnixListener struct {
	net.Listener
	path string
}

// NewUnixListener creates a listener on path. A stale socket file left by
// a previous process is removed first.
func NewUnixListener(path string) (*UnixListener, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &UnixListener{Listener: l, path: path}, nil
}

// Path returns the socket file path.
func (l *UnixListener) Path() string {
	return l.path
}
