package mqtt

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/input"
	"github.com/sweeney/spacebus/internal/state"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int
	Logger     *log.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	logger *log.Logger
	now    func() time.Time

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	everUp    bool

	inputs  chan input.RawEvent
	dropped int
}

// NewRealPublisher creates a publisher and starts connecting in the
// background. Publishing before the first connection buffers.
func NewRealPublisher(o Options) *RealPublisher {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	p := &RealPublisher{
		topics: Topics{Prefix: o.Prefix},
		logger: o.Logger,
		now:    time.Now,
		buf:    newRingBuffer(o.BufferSize, o.Logger),
		inputs: make(chan input.RawEvent, 256),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topics.System(), will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	token := c.Subscribe(p.topics.Input(), 0, p.onInput)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		p.logger.Printf("mqtt: subscribe %s: %v", p.topics.Input(), token.Error())
	}

	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		c.Publish(p.topics.System(), 1, true, payload)
	}
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.logger.Printf("mqtt: connected, replayed %d buffered messages", len(pending))
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Printf("mqtt: connection lost: %v", err)
}

func (p *RealPublisher) onInput(_ paho.Client, m paho.Message) {
	ch, ok := p.topics.InputChannel(m.Topic())
	if !ok {
		return
	}
	ev, err := ParseInput(ch, m.Payload())
	if err != nil {
		p.logger.Printf("mqtt: %v", err)
		return
	}
	select {
	case p.inputs <- ev:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

// Inputs returns raw events received on the input topics.
func (p *RealPublisher) Inputs() <-chan input.RawEvent { return p.inputs }

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// send publishes or buffers one message. QoS 0 messages are not waited on.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if qos == 0 {
		return nil
	}
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishEvent sends a dispatched event.
func (p *RealPublisher) PublishEvent(e dispatch.Event) error {
	payload, err := FormatEventPayload(e, p.now())
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return p.send(p.topics.Event(e.Kind), 0, false, payload)
}

// PublishState sends a cell change, retained so late subscribers see the
// latest value.
func (p *RealPublisher) PublishState(c state.Change) error {
	payload, err := FormatStatePayload(c, p.now())
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return p.send(p.topics.State(c.Name), 0, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - we want to ensure delivery
	return p.send(p.topics.System(), 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
