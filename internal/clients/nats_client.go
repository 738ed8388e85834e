package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/metrics"
)

// Launch event types.
const (
	EventRunStarted    = "run_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventRunCompleted  = "run_completed"
)

// LaunchEvent is the JSON payload published for every lifecycle change of a run.
type LaunchEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Step      string    `json:"step,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Token     string    `json:"token,omitempty"`
	Pair      string    `json:"pair,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSClient publishes launch events to a JetStream stream.
type NATSClient struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	streamName    string
	subjectPrefix string
	log           logrus.FieldLogger
}

// NewNATSClient connects and makes sure the stream exists.
func NewNATSClient(url, streamName, subjectPrefix string, connectTimeout time.Duration, logger logrus.FieldLogger) (*NATSClient, error) {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	log := logger.WithField("component", "nats")

	conn, err := nats.Connect(url,
		nats.Name("token-launcher"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:          conn,
		js:            js,
		streamName:    streamName,
		subjectPrefix: subjectPrefix,
		log:           log,
	}
	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

func (c *NATSClient) ensureStream() error {
	if _, err := c.js.StreamInfo(c.streamName); err == nil {
		c.log.WithField("stream", c.streamName).Debug("Stream already exists")
		return nil
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:      c.streamName,
		Subjects:  []string{c.subjectPrefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", c.streamName, err)
	}
	c.log.WithField("stream", c.streamName).Info("Stream created")
	return nil
}

// Subject returns <prefix>.<runID>.<type>[.<step>].
func (c *NATSClient) Subject(event *LaunchEvent) string {
	return LaunchSubject(c.subjectPrefix, event)
}

// LaunchSubject builds the subject for event under prefix.
func LaunchSubject(prefix string, event *LaunchEvent) string {
	subject := fmt.Sprintf("%s.%s.%s", prefix, event.RunID, event.Type)
	if event.Step != "" {
		subject += "." + event.Step
	}
	return subject
}

// PublishLaunchEvent publishes event and waits for the stream ack.
func (c *NATSClient) PublishLaunchEvent(event *LaunchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal launch event: %w", err)
	}
	subject := c.Subject(event)
	if _, err := c.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	c.log.WithField("subject", subject).Debug("Launch event published")
	return nil
}

// SubscribeLaunchEvents delivers every event under the prefix to handler.
func (c *NATSClient) SubscribeLaunchEvents(handler func(*LaunchEvent, string)) (*nats.Subscription, error) {
	subject := c.subjectPrefix + ".>"
	return c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event LaunchEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.log.WithError(err).WithField("subject", msg.Subject).Warn("Dropping malformed launch event")
			return
		}
		handler(&event, msg.Subject)
	})
}

// Ping round-trips to the server.
func (c *NATSClient) Ping() error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("nats: %s", c.conn.Status())
	}
	return c.conn.FlushTimeout(2 * time.Second)
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}
