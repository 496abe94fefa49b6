package metrics

import "expvar"

var (
	PlaysProcessed    = expvar.NewInt("plays_processed")
	UpstreamErrors    = expvar.NewInt("upstream_errors")
	PushFailures      = expvar.NewInt("push_failures")
	WorkersActive     = expvar.NewInt("workers_active")
	WorkersStarted    = expvar.NewInt("workers_started")
	WorkersStopped    = expvar.NewInt("workers_stopped")
	StreamSubscribers = expvar.NewInt("stream_subscribers")
	SignalsEmitted    = expvar.NewInt("signals_emitted")
)
