package mqtt3

import "golang.org/x/time/rate"

const defaultReaderBufferSize = 4096

// readerOptions holds configuration for a Reader.
type readerOptions struct {
	maxPacketSize uint32
	bufferSize    int
	logger        Logger
	metrics       Metrics

	// Rate limiting, zero rate means unlimited
	rateLimit rate.Limit
	rateBurst int
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

func defaultReaderOptions() *readerOptions {
	return &readerOptions{
		bufferSize: defaultReaderBufferSize,
		logger:     NewNoOpLogger(),
		metrics:    &NoOpMetrics{},
	}
}

// WithMaxPacketSize rejects packets whose remaining length exceeds size.
// Zero or values above the protocol maximum mean no limit beyond the protocol's own.
func WithMaxPacketSize(size uint32) ReaderOption {
	return func(o *readerOptions) {
		if size > maxRemainingLength {
			size = 0
		}
		o.maxPacketSize = size
	}
}

// WithBufferSize sets the size of the read buffer placed in front of the source.
func WithBufferSize(size int) ReaderOption {
	return func(o *readerOptions) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// WithLogger sets the logger used to report decoded packets and failures.
func WithLogger(logger Logger) ReaderOption {
	return func(o *readerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) ReaderOption {
	return func(o *readerOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithRateLimit limits the number of packets decoded per second.
// burst is the number of packets that may be decoded back to back.
func WithRateLimit(packetsPerSecond float64, burst int) ReaderOption {
	return func(o *readerOptions) {
		if packetsPerSecond <= 0 {
			o.rateLimit = 0
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.rateLimit = rate.Limit(packetsPerSecond)
		o.rateBurst = burst
	}
}
