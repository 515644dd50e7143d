// Package ingestion consumes the protocol indexer's vault-sync stream from
// NATS JetStream and applies it to the in-memory state store.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"ShuttleLens/internal/event"
)

// RawEvent is a consumed-but-unparsed message, tagged with the event type
// its subject maps to. Ack after a successful apply; Nak to redeliver.
type RawEvent struct {
	Subject   string
	EventType event.Type
	Data      []byte
	Timestamp time.Time
	AckFunc   func()
	NakFunc   func()
}

// SubjectConfig maps one NATS subject filter to an event type.
type SubjectConfig struct {
	Subject      string
	EventType    event.Type
	ConsumerName string
	StreamName   string
}

// DefaultSubjects is the standard indexer subject layout. Market
// registrations and vault-level state live on separate streams from the
// (much chattier) per-account updates.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "shuttle.markets.registered", EventType: event.TypeMarketRegistered, ConsumerName: "lens-markets", StreamName: "SHUTTLE_MARKETS"},
		{Subject: "shuttle.collateral.state.>", EventType: event.TypeCollateralState, ConsumerName: "lens-collateral", StreamName: "SHUTTLE_VAULTS"},
		{Subject: "shuttle.borrowable.state.>", EventType: event.TypeBorrowableState, ConsumerName: "lens-borrowable", StreamName: "SHUTTLE_VAULTS"},
		{Subject: "shuttle.account.collateral.>", EventType: event.TypeAccountCollateral, ConsumerName: "lens-acct-collateral", StreamName: "SHUTTLE_ACCOUNTS"},
		{Subject: "shuttle.account.borrow.>", EventType: event.TypeAccountBorrow, ConsumerName: "lens-acct-borrow", StreamName: "SHUTTLE_ACCOUNTS"},
		{Subject: "shuttle.account.lend.>", EventType: event.TypeAccountLend, ConsumerName: "lens-acct-lend", StreamName: "SHUTTLE_ACCOUNTS"},
	}
}

// NATSSubscriber feeds consumed messages into eventChan for the pump.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{js: js, eventChan: eventChan}
}

// Subscribe creates durable JetStream consumers for all configured
// subjects. Explicit ack, bounded redelivery.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		eventType := cfg.EventType
		consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
			published := time.Now()
			if meta, err := msg.Metadata(); err == nil {
				published = meta.Timestamp
			}
			raw := RawEvent{
				Subject:   msg.Subject(),
				EventType: eventType,
				Data:      msg.Data(),
				Timestamp: published,
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}
		ns.consumers = append(ns.consumers, consumeCtx)
	}
	return nil
}

// Stop drains all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, c := range ns.consumers {
		c.Stop()
	}
}
