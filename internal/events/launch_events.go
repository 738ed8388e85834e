// Package events turns launch lifecycle changes into NATS messages.
package events

import (
	"time"

	"github.com/sirupsen/logrus"

	"token-launcher/internal/clients"
	"token-launcher/internal/metrics"
)

// Sink is where events go. *clients.NATSClient is the production sink.
type Sink interface {
	PublishLaunchEvent(event *clients.LaunchEvent) error
}

// Publisher publishes best-effort: a broker outage is logged and counted but
// never fails a launch.
type Publisher struct {
	sink Sink
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewPublisher wraps sink. A nil sink makes every call a no-op.
func NewPublisher(sink Sink, logger logrus.FieldLogger) *Publisher {
	return &Publisher{sink: sink, log: logger.WithField("component", "events"), now: time.Now}
}

// Publish stamps and sends event.
func (p *Publisher) Publish(event clients.LaunchEvent) {
	if p == nil || p.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if err := p.sink.PublishLaunchEvent(&event); err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "failed").Inc()
		p.log.WithError(err).WithFields(logrus.Fields{
			"run_id": event.RunID,
			"type":   event.Type,
		}).Warn("Failed to publish launch event")
		return
	}
	metrics.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
}
