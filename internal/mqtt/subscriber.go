package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/pkg/messages"

	paho "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
)

const subscribeQoS = byte(1)

// Subscriber consumes hourly ride counts and predictions from the broker.
type Subscriber struct {
	client    paho.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu          sync.RWMutex
	ridesHandler       func(ctx context.Context, msg messages.RideCount) error
	predictionsHandler func(ctx context.Context, msg messages.Prediction) error
}

// IngestSubscriber is what feature modules attach their handlers to.
type IngestSubscriber interface {
	SetRidesHandler(handler func(ctx context.Context, msg messages.RideCount) error)
	SetPredictionsHandler(handler func(ctx context.Context, msg messages.Prediction) error)
}

func (s *Subscriber) SetRidesHandler(handler func(ctx context.Context, msg messages.RideCount) error) {
	s.handlerMu.Lock()
	s.ridesHandler = handler
	s.handlerMu.Unlock()
}

func (s *Subscriber) SetPredictionsHandler(handler func(ctx context.Context, msg messages.Prediction) error) {
	s.handlerMu.Lock()
	s.predictionsHandler = handler
	s.handlerMu.Unlock()
}

// NewSubscriber builds the client without connecting. Topics are subscribed
// from the connect callback so they survive reconnects with a clean session.
func NewSubscriber(cfg config.Config, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := newClientOptions(cfg, cfg.MQTTClientID,
		func(_ paho.Client) {
			s.setConnected(true)
			logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
			if err := s.subscribe(); err != nil {
				logger.Error("mqtt subscribe failed", "error", err)
			}
		},
		func(_ paho.Client, err error) {
			s.setConnected(false)
			logger.Warn("mqtt connection lost", "error", err)
		},
	)
	s.client = paho.NewClient(opts)
	return s
}

// Connect waits for the first connection to the broker. It honours ctx and Disconnect.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return errStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	if err := waitConnect(ctx, s.stopCh, s.client.Connect()); err != nil {
		s.client.Disconnect(0)
		return err
	}
	return nil
}

func (s *Subscriber) topics() map[string]byte {
	return map[string]byte{
		s.cfg.MQTTRidesTopic:       subscribeQoS,
		s.cfg.MQTTPredictionsTopic: subscribeQoS,
	}
}

func (s *Subscriber) subscribe() error {
	topics := s.topics()
	token := s.client.SubscribeMultiple(topics, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(context.Background(), msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topics %s, %s", s.cfg.MQTTRidesTopic, s.cfg.MQTTPredictionsTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	for topic, qos := range topics {
		s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	}
	return nil
}

func (s *Subscriber) handleMessage(ctx context.Context, topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var err error
	switch topic {
	case s.cfg.MQTTRidesTopic:
		err = s.handleRideCount(ctx, payload)
	case s.cfg.MQTTPredictionsTopic:
		err = s.handlePrediction(ctx, payload)
	default:
		s.logger.Warn("message on unexpected topic", "topic", topic)
		return
	}
	if err != nil {
		s.logger.Warn("mqtt message rejected", "topic", topic, "error", err)
	}
}

func (s *Subscriber) handleRideCount(ctx context.Context, payload []byte) error {
	var msg messages.RideCount
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parse ride count: %w", err)
	}
	if err := validateRideCount(msg); err != nil {
		return fmt.Errorf("invalid ride count for station %q: %w", msg.StationID, err)
	}
	msg.Hour = messages.TruncateHour(msg.Hour)

	s.handlerMu.RLock()
	handler := s.ridesHandler
	s.handlerMu.RUnlock()
	if handler == nil {
		return nil
	}
	if err := handler(ctx, msg); err != nil {
		return fmt.Errorf("rides handler: %w", err)
	}
	s.logger.Debug("processed ride count", "station_id", msg.StationID, "hour", msg.Hour)
	return nil
}

func (s *Subscriber) handlePrediction(ctx context.Context, payload []byte) error {
	var msg messages.Prediction
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parse prediction: %w", err)
	}
	if err := validatePrediction(msg); err != nil {
		return fmt.Errorf("invalid prediction for station %q: %w", msg.StationID, err)
	}
	msg.Hour = messages.TruncateHour(msg.Hour)

	s.handlerMu.RLock()
	handler := s.predictionsHandler
	s.handlerMu.RUnlock()
	if handler == nil {
		return nil
	}
	if err := handler(ctx, msg); err != nil {
		return fmt.Errorf("predictions handler: %w", err)
	}
	s.logger.Debug("processed prediction", "station_id", msg.StationID, "hour", msg.Hour)
	return nil
}

func validateRideCount(m messages.RideCount) error {
	if err := messages.ValidateStationID(m.StationID); err != nil {
		return err
	}
	if m.Hour.IsZero() {
		return fmt.Errorf("hour is required")
	}
	if m.Rides == nil {
		return fmt.Errorf("rides is required")
	}
	if *m.Rides < 0 {
		return fmt.Errorf("rides must be >= 0: %d", *m.Rides)
	}
	return nil
}

func validatePrediction(m messages.Prediction) error {
	if err := messages.ValidateStationID(m.StationID); err != nil {
		return err
	}
	if m.Hour.IsZero() {
		return fmt.Errorf("hour is required")
	}
	if m.PredictedDemand == nil {
		return fmt.Errorf("predicted_demand is required")
	}
	v := *m.PredictedDemand
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("predicted_demand must be finite")
	}
	if v < 0 {
		return fmt.Errorf("predicted_demand must be >= 0: %f", v)
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the connection. Safe to call more than once.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTRidesTopic, s.cfg.MQTTPredictionsTopic)
		token.WaitTimeout(2 * time.Second)
	}
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
