// internal/storage/models/convert.go
package models

import (
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchguard/internal/events"
)

func amount(v uint64) decimal.Decimal {
	return decimal.NewFromUint64(v)
}

// FromEvent converts a bus event into a journal entry. Unknown events are skipped.
func FromEvent(ev events.Event) (*JournalEntry, bool) {
	entry := &JournalEntry{
		EventType:  string(ev.Type()),
		OccurredAt: ev.Timestamp(),
	}
	switch e := ev.(type) {
	case events.ProgramInitializedEvent:
		entry.Mint = e.Mint.String()
		entry.Trader = e.Authority.String()
		entry.Pool = e.Pool.String()
		entry.TokenAmount = amount(e.ReserveAmount)
		entry.Slot = e.LaunchSlot
	case events.TradeExecutedEvent:
		entry.Mint = e.Mint.String()
		entry.Trader = e.Trader.String()
		entry.Side = "sell"
		if e.IsBuy {
			entry.Side = "buy"
		}
		entry.ValueAmount = amount(e.ValueAmount)
		entry.TokenAmount = amount(e.TokenAmount)
		entry.Slot = e.Slot
	case events.BotPurchaseHandledEvent:
		entry.Mint = e.Mint.String()
		entry.Trader = e.Bot.String()
		entry.Side = "buy"
		entry.ValueAmount = amount(e.ValueCaptured)
		entry.TokenAmount = amount(e.TokensSold)
		entry.CapturedTotal = amount(e.CapturedTotal)
		entry.Slot = e.Slot
	case events.TradeRejectedEvent:
		entry.Mint = e.Mint.String()
		entry.Trader = e.Trader.String()
		entry.Side = e.Side
		entry.ValueAmount = amount(e.Amount)
		entry.Reason = e.Reason
		entry.Slot = e.Slot
	default:
		return nil, false
	}
	return entry, true
}
