package publish

import (
	"context"
	"time"

	"github.com/betbot/swingfeed/internal/domain"
)

// Publisher is the single delivery point for the pipeline. Every result
// goes into the hub for streaming consumers; configured push sinks get a
// best-effort POST on top.
type Publisher struct {
	hub         *Hub
	sinks       []*PushSink
	pushTimeout time.Duration
}

func NewPublisher(hub *Hub, sinks []*PushSink, pushTimeout time.Duration) *Publisher {
	if pushTimeout <= 0 {
		pushTimeout = 10 * time.Second
	}
	return &Publisher{hub: hub, sinks: sinks, pushTimeout: pushTimeout}
}

// Publish records the result in the hub, then offers it to the push
// endpoints in configuration order, stopping at the first acceptance;
// later endpoints are fallbacks, not extra copies. Pushes run inline so
// a worker's post-delivery cooldown starts after the downstream has
// been offered the play, matching the poll pacing.
func (p *Publisher) Publish(r domain.PlayResult) {
	p.hub.Publish(r)
	for _, sink := range p.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), p.pushTimeout)
		accepted := sink.Deliver(ctx, r)
		cancel()
		if accepted {
			return
		}
	}
}

// Hub exposes the stream hub for the serving layer.
func (p *Publisher) Hub() *Hub {
	return p.hub
}
