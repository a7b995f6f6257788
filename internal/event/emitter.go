package event

import (
	"context"

	"github.com/meridian-works/meridian/pkg/log"
)

// Emitter fans events out to the in-process bus (SSE subscribers) and
// the configured broker. A nil *Emitter discards everything.
type Emitter struct {
	bus       Bus
	publisher Publisher
}

func NewEmitter(bus Bus, publisher Publisher) *Emitter {
	if publisher == nil {
		publisher = &NoopPublisher{}
	}
	return &Emitter{bus: bus, publisher: publisher}
}

// Bus returns the in-process bus, if any.
func (e *Emitter) Bus() Bus {
	if e == nil {
		return nil
	}
	return e.bus
}

// Emit publishes evt. Broker failures are logged, never returned.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if e == nil {
		return
	}

	if e.bus != nil {
		e.bus.Publish(evt)
	}

	if err := e.publisher.Publish(ctx, evt.Type.Subject(), evt); err != nil {
		log.Warn("failed to publish event", "type", evt.Type, "error", err)
	}
}

func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.publisher.Close()
}
