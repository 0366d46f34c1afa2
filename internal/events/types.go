// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	ProgramInitialized EventType = "launch.initialized"
	TradeExecuted      EventType = "trade.executed"
	BotPurchaseHandled EventType = "trade.bot_handled"
	TradeRejected      EventType = "trade.rejected"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event header with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// ProgramInitializedEvent is emitted once per mint when a launch is configured.
type ProgramInitializedEvent struct {
	BaseEvent
	Mint          solana.PublicKey
	Authority     solana.PublicKey
	Pool          solana.PublicKey
	LaunchSlot    uint64
	ReserveAmount uint64
}

// TradeExecutedEvent is emitted for every regular buy or sell.
type TradeExecutedEvent struct {
	BaseEvent
	Mint        solana.PublicKey
	Trader      solana.PublicKey
	IsBuy       bool
	ValueAmount uint64
	// TokenAmount is the engine's estimate, not the AMM's fill.
	TokenAmount uint64
	Slot        uint64
}

// BotPurchaseHandledEvent is emitted when a monitored buy was neutralized.
type BotPurchaseHandledEvent struct {
	BaseEvent
	Mint            solana.PublicKey
	Bot             solana.PublicKey
	TokensPurchased uint64
	ValueCaptured   uint64
	TokensSold      uint64
	// CapturedTotal is the launch's running total after this capture.
	CapturedTotal uint64
	Slot          uint64
}

// TradeRejectedEvent is emitted when a trade fails any check.
type TradeRejectedEvent struct {
	BaseEvent
	Mint   solana.PublicKey
	Trader solana.PublicKey
	Side   string
	Amount uint64
	Reason string
	Slot   uint64
}
