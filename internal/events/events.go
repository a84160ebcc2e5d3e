// Package events announces completed token operations to downstream
// consumers over Redis or RabbitMQ.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeTokenDeployed = "token.deployed"
	TypeTokenMinted   = "token.minted"
)

// Event describes a submitted token operation.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Chain      string    `json:"chain"`
	Contract   string    `json:"contract"`
	TxHash     string    `json:"tx_hash"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType, chain, contract, txHash string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Chain:      chain,
		Contract:   contract,
		TxHash:     txHash,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
