package notify

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Broadcaster resolves an event's recipients from the registry and
// delivers one serialized envelope to each. Delivery is fire-and-forget:
// enqueueing never blocks, and a dead connection is the pump's problem,
// not the publisher's.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
	log      *zap.Logger
}

func NewBroadcaster(registry *Registry, metrics *Metrics, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		metrics:  metrics,
		log:      log.Named("notify.broadcaster"),
	}
}

// Publish serializes the event once and fans it out to every connection
// the audience hint resolves to. Callers invoke it from inside the same
// critical section that mutated the store, which is what keeps per-id
// event order aligned with the order of successful mutations.
func (b *Broadcaster) Publish(event Event) {
	payload, err := json.Marshal(event.Envelope())
	if err != nil {
		b.log.Error("envelope marshal failed", zap.Error(err))
		return
	}

	recipients := b.resolve(event)
	dropped := 0
	for _, client := range recipients {
		dropped += client.enqueue(payload)
	}

	b.metrics.eventsPublished.WithLabelValues(string(event.Type)).Inc()
	if dropped > 0 {
		b.metrics.dropped.Add(float64(dropped))
	}

	b.log.Debug("event published",
		zap.String("type", string(event.Type)),
		zap.String("request_kind", event.RequestKind),
		zap.String("request_id", event.RequestID),
		zap.Int("recipients", len(recipients)),
		zap.Int("dropped", dropped),
	)
}

func (b *Broadcaster) resolve(event Event) []*Client {
	var recipients []*Client
	switch event.Audience {
	case AudienceOwner:
		recipients = b.registry.FindByUser(event.OwnerID)
	case AudienceAdmins:
		recipients = b.registry.Admins()
	case AudienceAll:
		recipients = b.registry.FindByUser(event.OwnerID)
		recipients = append(recipients, b.registry.Admins()...)
	}
	return recipients
}
