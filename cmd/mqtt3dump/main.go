// Command mqtt3dump accepts MQTT 3.1/3.1.1 client connections, decodes
// every inbound packet and logs it, optionally recording a CBOR capture.
//
// Usage:
//
//	mqtt3dump -listen tcp://:1883,ws://:8080/mqtt -log-level debug
//	mqtt3dump -config mqtt3dump.yaml -capture packets.cbor
//	mqtt3dump -replay packets.cbor
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vitalvas/mqtt3"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mqtt3dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath    = fs.String("config", "", "path to a YAML config file")
		listen        = fs.String("listen", "", "comma separated listener URLs")
		maxConns      = fs.Int("max-conns", 0, "maximum simultaneous connections per listener, 0 for no limit")
		maxPacketSize = fs.Uint64("max-packet-size", 0, "maximum remaining length of a packet, 0 for no limit")
		rateLimit     = fs.Float64("rate", 0, "packets per second per connection, 0 for no limit")
		logLevel      = fs.String("log-level", "", "debug, info, warn, error or none")
		capturePath   = fs.String("capture", "", "append decoded packets to this CBOR file")
		tlsCert       = fs.String("tls-cert", "", "TLS certificate file for tls, quic and wss listeners")
		tlsKey        = fs.String("tls-key", "", "TLS key file")
		replayPath    = fs.String("replay", "", "print a capture file and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *replayPath != "" {
		_, err := replay(*replayPath, stdout)
		return err
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listeners = splitList(*listen)
		case "max-conns":
			cfg.MaxConns = *maxConns
		case "max-packet-size":
			if *maxPacketSize > math.MaxUint32 {
				flagErr = fmt.Errorf("max-packet-size out of range: %d", *maxPacketSize)
				return
			}
			cfg.MaxPacketSize = uint32(*maxPacketSize)
		case "rate":
			cfg.RateLimit = *rateLimit
		case "log-level":
			cfg.LogLevel = *logLevel
		case "capture":
			cfg.Capture = *capturePath
		case "tls-cert":
			cfg.TLS.CertFile = *tlsCert
		case "tls-key":
			cfg.TLS.KeyFile = *tlsKey
		}
	})
	if flagErr != nil {
		return fmt.Errorf("invalid config: %w", flagErr)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := mqtt3.ParseLogLevel(cfg.LogLevel)
	logger := mqtt3.NewStdLogger(stderr, level)

	tlsConfig, err := loadTLSConfig(cfg.TLS)
	if err != nil {
		return err
	}

	var capture *CaptureWriter
	if cfg.Capture != "" {
		if capture, err = NewCaptureWriter(cfg.Capture); err != nil {
			return err
		}
		defer capture.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(cfg, tlsConfig, logger, capture)
	if err := srv.listen(); err != nil {
		return err
	}
	srv.serve(ctx)

	return nil
}

func loadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
