package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// StateSource is the subset of the dispatcher the publisher observes.
type StateSource interface {
	Subscribe() (<-chan classifier.State, func())
}

// Publisher forwards every completed generation to an MQTT topic exactly once.
type Publisher struct {
	client Client
	topic  string
	now    func() time.Time
}

// NewPublisher creates a publisher for topic.
func NewPublisher(c Client, topic string) *Publisher {
	return &Publisher{client: c, topic: topic, now: time.Now}
}

// Run connects to the broker and publishes completed results until ctx is
// cancelled or the source closes its subscription. A failed connection is
// logged and the publisher keeps running; paho retries in the background.
func (p *Publisher) Run(ctx context.Context, source StateSource) {
	log := GetLogger()

	if err := p.client.Connect(ctx); err != nil {
		log.Warn("MQTT connection failed, results will not be published until the broker is reachable",
			logger.Error(err))
	}
	defer p.client.Disconnect()

	updates, cancel := source.Subscribe()
	defer cancel()

	var lastPublished uint64
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if !s.Complete() || s.Generation == lastPublished {
				continue
			}
			lastPublished = s.Generation
			if err := p.publish(ctx, s); err != nil {
				log.Warn("failed to publish classification result",
					logger.String("request_id", s.RequestID),
					logger.Error(err))
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, s classifier.State) error {
	payload, err := json.Marshal(NewResultDTO(s, p.now()))
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topic, payload)
}
