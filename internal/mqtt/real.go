package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/feedback-controller/internal/logger"
	"github.com/sweeney/feedback-controller/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectMs   = 1000
)

var errPublishTimeout = errors.New("publish timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// BufferSize is how many messages are kept for replay while offline.
	BufferSize int
	// Now stamps RECONNECTED events; nil uses time.Now.
	Now func() time.Time
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	now    func() time.Time

	mu        sync.Mutex
	buffer    *ringBuffer
	subs      map[string]paho.MessageHandler
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker. It waits a
// bounded time for the first connection and keeps retrying in the
// background if the broker is not reachable yet.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker not set")
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	p := &RealPublisher{
		topics: NewTopics(o.TopicPrefix),
		now:    o.Now,
		buffer: newRingBuffer(o.BufferSize),
		subs:   make(map[string]paho.MessageHandler),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Named("mqtt").Warnf("broker %s not reachable yet, buffering until connected", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Topics returns the topics this publisher writes to.
func (p *RealPublisher) Topics() Topics {
	return p.topics
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Publish sends a controller event. QoS 1 so transitions are not lost.
func (p *RealPublisher) Publish(at time.Time, event logic.Event) error {
	payload, err := FormatPayload(at, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.Events, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// Subscribe registers handle for topic and subscribes now if connected.
// onConnect re-subscribes after every reconnect.
func (p *RealPublisher) Subscribe(topic string, handle func(payload []byte)) error {
	h := func(_ paho.Client, m paho.Message) {
		handle(m.Payload())
	}

	p.mu.Lock()
	p.subs[topic] = h
	up := p.connected
	p.mu.Unlock()

	if !up {
		return nil
	}

	token := p.client.Subscribe(topic, 1, h)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(disconnectMs)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	if n := p.buffer.len(); n > 0 {
		logger.Named("mqtt").Warnf("discarding %d unsent messages", n)
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.publish(msg); err != nil {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	pending := p.buffer.drainAll()
	subs := make(map[string]paho.MessageHandler, len(p.subs))
	for t, h := range p.subs {
		subs[t] = h
	}
	p.mu.Unlock()

	logger.Named("mqtt").Infof("connected (replaying %d buffered messages)", len(pending))

	for topic, h := range subs {
		if token := c.Subscribe(topic, 1, h); token.WaitTimeout(publishTimeout) && token.Error() != nil {
			logger.Named("mqtt").Warnf("resubscribe %s: %v", topic, token.Error())
		}
	}

	for _, msg := range pending {
		if err := p.publish(msg); err != nil {
			logger.Named("mqtt").Warnf("replay to %s: %v", msg.topic, err)
		}
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: EventReconnected}); err != nil {
			logger.Named("mqtt").Warnf("publish reconnect: %v", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	logger.Named("mqtt").Warnf("connection lost: %v", err)
}
