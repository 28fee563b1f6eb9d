package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/babui-rent/babui/internal/domain"
)

const publishTimeout = 5 * time.Second

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher forwards change events to an MQTT broker on
// <prefix>/properties/<id>/<kind>. Events are queued by Handle and sent by Run,
// so a slow broker never blocks a repository write.
type MQTTPublisher struct {
	client mqttClient
	prefix string
	queue  chan domain.ChangeEvent
	logger *slog.Logger
}

// DialMQTT connects to broker and returns a publisher for it
func DialMQTT(broker, clientID, prefix string, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", slog.String("error", err.Error()))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}
	logger.Info("mqtt publisher connected", slog.String("broker", broker))
	return newMQTTPublisher(client, prefix, logger), nil
}

func newMQTTPublisher(client mqttClient, prefix string, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		queue:  make(chan domain.ChangeEvent, 256),
		logger: logger,
	}
}

// Topic returns the topic an event is published on
func (p *MQTTPublisher) Topic(ev domain.ChangeEvent) string {
	return fmt.Sprintf("%s/properties/%s/%s", p.prefix, ev.PropertyID, ev.Kind)
}

// Handle queues ev for publishing. When the queue is full the event is dropped.
func (p *MQTTPublisher) Handle(ev domain.ChangeEvent) {
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("mqtt queue full, dropping change event",
			slog.String("property_id", ev.PropertyID),
			slog.String("kind", string(ev.Kind)),
		)
	}
}

// Run publishes queued events until ctx is cancelled, then disconnects
func (p *MQTTPublisher) Run(ctx context.Context) {
	defer p.client.Disconnect(250)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.publish(ev)
		}
	}
}

func (p *MQTTPublisher) publish(ev domain.ChangeEvent) {
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		p.logger.Error("failed to encode change event", slog.String("error", err.Error()))
		return
	}

	topic := p.Topic(ev)
	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("mqtt publish timed out", slog.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Error("mqtt publish failed", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	p.logger.Debug("change event published", slog.String("topic", topic))
}
