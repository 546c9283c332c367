package broker

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/clubmgr/transfer-services/internal/comm"
)

// Topics bid events are fanned out to. The notification service owns
// email delivery; the events topic feeds live dashboards.
const (
	TopicNotify = "notify.service"
	TopicEvents = "transfer.events"
)

type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}
	return nil
}

// PublishBidEvent sends the event to both topics. Fire and forget:
// a publish failure is logged and the transition stands.
func (b *Broker) PublishBidEvent(event comm.BidEvent) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("unable to marshal bid event %s: %s", event.Type, err)
		return
	}

	b.Publish(TopicNotify, payload)
	b.Publish(TopicEvents, payload)
}
