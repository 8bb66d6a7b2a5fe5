// Package events publishes wallet authentication audit events through Watermill.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaulFidika/walletauth/core"
	"github.com/ThreeDotsLabs/watermill/message"
)

// DefaultTopic is the stream auth events are published to.
const DefaultTopic = "walletauth.events"

// AuthEventMessage is the JSON payload of a published event.
type AuthEventMessage struct {
	ID            string    `json:"id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Event         string    `json:"event"`
	WalletAddress string    `json:"wallet_address"`
	AccountID     string    `json:"account_id,omitempty"`
	Scheme        string    `json:"scheme,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	IPAddr        string    `json:"ip_addr,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}

// WatermillPublisher implements core.AuthEventLogger using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

var _ core.AuthEventLogger = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a new Watermill-backed audit sink. An empty topic uses DefaultTopic.
func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{publisher: publisher, topic: topic}
}

// LogAuthEvent publishes e as JSON, using the event ID as the message UUID.
func (p *WatermillPublisher) LogAuthEvent(ctx context.Context, e core.AuthEvent) error {
	payload, err := json.Marshal(AuthEventMessage{
		ID:            e.ID,
		OccurredAt:    e.OccurredAt,
		Event:         string(e.Event),
		WalletAddress: e.WalletAddress,
		AccountID:     e.AccountID,
		Scheme:        e.Scheme,
		Reason:        e.Reason,
		IPAddr:        e.IPAddr,
		UserAgent:     e.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(e.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event", string(e.Event))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
