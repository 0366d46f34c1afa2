// internal/storage/sink.go
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/storage/models"
)

// Sink writes bus events into one or more journals.
type Sink struct {
	journals []Journal
	logger   *zap.Logger
}

func NewSink(logger *zap.Logger, journals ...Journal) *Sink {
	return &Sink{journals: journals, logger: logger.Named("journal")}
}

// Handle implements events.Handler. Every journal is tried; the first
// failure is returned.
func (s *Sink) Handle(ctx context.Context, ev events.Event) error {
	entry, ok := models.FromEvent(ev)
	if !ok {
		return nil
	}
	var first error
	for _, j := range s.journals {
		if err := j.Record(ctx, entry); err != nil {
			s.logger.Error("Failed to record event",
				zap.String("event_type", entry.EventType),
				zap.String("mint", entry.Mint),
				zap.Error(err))
			if first == nil {
				first = fmt.Errorf("journal %T: %w", j, err)
			}
		}
	}
	return first
}

// Attach subscribes the sink to every launch event on bus.
func (s *Sink) Attach(bus *events.Bus) []events.Subscription {
	return bus.SubscribeAll(s)
}

// Close closes every journal.
func (s *Sink) Close() error {
	var first error
	for _, j := range s.journals {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
