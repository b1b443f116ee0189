// Package events publishes bridge flow transitions to NATS so downstream
// consumers (indexers, dashboards) can follow flows without polling the API.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/config"
	"tokenbridge/internal/metrics"
)

// FlowEvent is the payload published on every flow state transition.
type FlowEvent struct {
	FlowID    string    `json:"flow_id"`
	Variant   string    `json:"variant"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is a thin NATS wrapper. A nil Publisher is valid and drops all
// events, so callers never have to branch on whether eventing is configured.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Logger
}

// NewPublisher connects to NATS using the app configuration. Returns nil
// (and no error) when NATS is not configured.
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	if config.AppConfig == nil || config.AppConfig.NATS.URL == "" {
		return nil, nil
	}

	cfg := config.AppConfig.NATS
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			metrics.NATSConnectionStatus.Set(0)
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.NATSConnectionStatus.Set(1)
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	return &Publisher{conn: conn, logger: logger}, nil
}

// PublishFlowTransition publishes a state transition under
// bridge.flow.<variant>.<status>.
func (p *Publisher) PublishFlowTransition(event FlowEvent) {
	if p == nil || p.conn == nil {
		return
	}
	event.Timestamp = time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("failed to marshal flow event")
		return
	}
	subject := fmt.Sprintf("bridge.flow.%s.%s", event.Variant, event.Status)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("failed to publish flow event")
	}
}

func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
	metrics.NATSConnectionStatus.Set(0)
}
