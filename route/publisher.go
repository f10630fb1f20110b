package route

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultPublishPrefix is the topic prefix when neither MQTT_PUBLISH_PREFIX
// nor the config sets one.
const DefaultPublishPrefix = "gpxfuse"

// Publisher publishes run summaries to MQTT.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	summaries     map[string]*RunSummary
	mu            sync.RWMutex
}

// NewPublisher creates a summary publisher.
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true, // late subscribers see the latest run
		summaries:     make(map[string]*RunSummary),
	}
}

// NewPublisherFromConfig creates a publisher with the configured prefix, QoS
// and retain flag. MQTT_QOS and MQTT_RETAIN override the config; invalid
// values are logged and ignored.
func NewPublisherFromConfig(client mqtt.Client, config *MQTTConfig) *Publisher {
	if config == nil {
		config = &MQTTConfig{}
	}
	p := NewPublisher(client, config.PublishPrefix)

	qos := config.QoS
	if env := os.Getenv("MQTT_QOS"); env != "" {
		if v, err := strconv.Atoi(env); err == nil && v >= 0 && v <= 2 {
			qos = v
		} else {
			log.Printf("[MQTT] Warning: ignoring MQTT_QOS=%q", env)
		}
	}
	if qos >= 0 && qos <= 2 {
		p.SetQoS(byte(qos))
	}

	if config.Retain != nil {
		p.SetRetain(*config.Retain)
	}
	if env := os.Getenv("MQTT_RETAIN"); env != "" {
		if v, err := strconv.ParseBool(env); err == nil {
			p.SetRetain(v)
		} else {
			log.Printf("[MQTT] Warning: ignoring MQTT_RETAIN=%q", env)
		}
	}
	return p
}

// PublishSummary publishes one route's summary to {prefix}/{routeID} and the
// roll-up of all known routes to {prefix}/summary.
func (p *Publisher) PublishSummary(s *RunSummary) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.summaries[s.RouteID] = s
	p.mu.Unlock()

	if err := p.publishRoute(s); err != nil {
		log.Printf("[MQTT] Error publishing summary for %s: %v", s.RouteID, err)
		return err
	}

	if err := p.publishRollup(); err != nil {
		log.Printf("[MQTT] Error publishing roll-up: %v", err)
		return err
	}

	return nil
}

func (p *Publisher) publishRoute(s *RunSummary) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, s.RouteID)

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if err := p.publish(topic, payload); err != nil {
		return err
	}

	log.Printf("[MQTT] Published %s: %.1f (%s)", s.RouteID, s.Overall, s.Level)
	return nil
}

func (p *Publisher) publishRollup() error {
	p.mu.RLock()
	routes := make([]*RunSummary, 0, len(p.summaries))
	for _, s := range p.summaries {
		routes = append(routes, s)
	}
	p.mu.RUnlock()

	if len(routes) == 0 {
		return nil
	}

	valid := 0
	for _, s := range routes {
		if s.Valid {
			valid++
		}
	}
	message := map[string]interface{}{
		"routes":    routes,
		"valid":     valid,
		"total":     len(routes),
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling roll-up: %w", err)
	}

	return p.publish(fmt.Sprintf("%s/summary", p.publishPrefix), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
