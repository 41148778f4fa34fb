package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/pkg/messages"

	paho "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Publisher sends ride counts and predictions to the ingest topics.
type Publisher struct {
	client    paho.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher builds a publisher with a client id derived from MQTT_CLIENT_ID,
// so it can share a broker with a running monitor.
func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	clientID := fmt.Sprintf("%s-pub-%s", cfg.MQTTClientID, uuid.NewString()[:8])

	opts := newClientOptions(cfg, clientID,
		func(_ paho.Client) {
			p.setConnected(true)
			logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort, "client_id", clientID)
		},
		func(_ paho.Client, err error) {
			p.setConnected(false)
			logger.Warn("mqtt connection lost", "error", err)
		},
	)
	p.client = paho.NewClient(opts)
	return p
}

// Connect waits for the connection to the broker. It honours ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}
	if p.IsConnected() {
		return nil
	}
	return waitConnect(ctx, p.stopCh, p.client.Connect())
}

// PublishRideCount publishes msg on the rides topic.
func (p *Publisher) PublishRideCount(msg messages.RideCount) error {
	if err := validateRideCount(msg); err != nil {
		return fmt.Errorf("invalid ride count: %w", err)
	}
	return p.publish(p.cfg.MQTTRidesTopic, msg.StationID, msg)
}

// PublishPrediction publishes msg on the predictions topic.
func (p *Publisher) PublishPrediction(msg messages.Prediction) error {
	if err := validatePrediction(msg); err != nil {
		return fmt.Errorf("invalid prediction: %w", err)
	}
	return p.publish(p.cfg.MQTTPredictionsTopic, msg.StationID, msg)
}

func (p *Publisher) publish(topic, stationID string, v any) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Error("failed to publish", "topic", topic, "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	p.logger.Debug("published", "topic", topic, "station_id", stationID)
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect closes the connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
