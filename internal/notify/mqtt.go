package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Event is a record change pushed to interested observers. Purely a
// UI-responsiveness aid; nothing in the core depends on delivery.
type Event struct {
	Table     string    `json:"table"`
	Action    string    `json:"action"` // "insert", "update", "delete"
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher pushes record change events.
type Publisher interface {
	Publish(table, action, recordID string)
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(table, action, recordID string) {}

// MQTTPublisher publishes change events to mineflow/events/<table>.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(brokerURL, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout: %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &MQTTPublisher{client: client}, nil
}

// Publish sends the event without waiting for broker acknowledgement.
// Failures are logged and dropped.
func (p *MQTTPublisher) Publish(table, action, recordID string) {
	event := Event{
		Table:     table,
		Action:    action,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("Failed to marshal change event")
		return
	}
	token := p.client.Publish("mineflow/events/"+table, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).WithFields(log.Fields{
				"table":  table,
				"action": action,
			}).Warn("Failed to publish change event")
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
