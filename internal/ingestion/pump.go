package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ShuttleLens/internal/event"
	"ShuttleLens/internal/observability"
)

// Sink receives parsed events. The state store is the only production sink.
type Sink interface {
	Apply(evt event.Event) error
}

// Pump drains the raw-event channel: parse, apply, ack. Parse failures and
// store rejections are nak'd for redelivery and counted; a poison message
// exhausts its MaxDeliver budget upstream rather than wedging the pump.
type Pump struct {
	events  <-chan RawEvent
	sink    Sink
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPump(events <-chan RawEvent, sink Sink, log zerolog.Logger, metrics *observability.Metrics) *Pump {
	return &Pump{events: events, sink: sink, log: log, metrics: metrics}
}

// Run blocks until ctx is canceled or the channel closes.
func (p *Pump) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-p.events:
			if !ok {
				return
			}
			p.handle(raw)
		}
	}
}

func (p *Pump) handle(raw RawEvent) {
	evt, err := ParseRawEvent(raw)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", raw.Subject).Msg("drop malformed event")
		p.metrics.IngestRejected.WithLabelValues("parse").Inc()
		raw.NakFunc()
		return
	}

	if err := p.sink.Apply(evt); err != nil {
		p.log.Warn().Err(err).Str("type", evt.EventType().String()).Msg("event rejected by store")
		p.metrics.IngestRejected.WithLabelValues("apply").Inc()
		raw.NakFunc()
		return
	}

	p.metrics.IngestApplied.WithLabelValues(evt.EventType().String()).Inc()
	if !raw.Timestamp.IsZero() {
		p.metrics.IngestLag.Observe(time.Since(raw.Timestamp).Seconds())
	}
	raw.AckFunc()
}
