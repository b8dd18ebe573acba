package nircamera

import "github.com/DKandrew/NirCamera/log"

// Option configures a Server at construction time, following the same
// functional-options style used elsewhere in this codebase.
type Option func(*options)

type options struct {
	workers            int
	maxClients         int
	frameQueueCapacity int
	frameTolerance     uint64
	requestMaxBytes    int
	logger             log.Logger
}

func defaultOptions() options {
	return options{
		workers:            4,
		maxClients:         64,
		frameQueueCapacity: 1,
		frameTolerance:     0,
		requestMaxBytes:    1024,
	}
}

// WithWorkers sets the number of reactor worker goroutines. Values below 1
// are clamped to 1 by the reactor pool.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMaxClients sets the number of pre-created connection slots. It does not
// set the listen backlog: Run listens with net.Listen's default backlog.
func WithMaxClients(n int) Option {
	return func(o *options) { o.maxClients = n }
}

// WithQueueCapacity sets the capacity of each worker's per-worker frame
// queue.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.frameQueueCapacity = n }
}

// WithTolerance sets the staleness tolerance window applied when a worker
// drains its frame queue.
func WithTolerance(n uint64) Option {
	return func(o *options) { o.frameTolerance = n }
}

// WithMaxRequestBytes bounds how many accumulated bytes a connection will
// buffer before classifying the request as invalid.
func WithMaxRequestBytes(n int) Option {
	return func(o *options) { o.requestMaxBytes = n }
}

// WithLogger supplies a logger for the server and every connection it owns.
// When omitted, logs are discarded.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}
