package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bikeshare-monitor/internal/config"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var errStopped = errors.New("mqtt client stopped")

func brokerURL(cfg config.Config) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort)
}

// newClientOptions returns the shared session settings for both ends.
// onConnect and onLost keep the caller's connection state accurate.
func newClientOptions(cfg config.Config, clientID string, onConnect paho.OnConnectHandler, onLost paho.ConnectionLostHandler) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(clientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(onConnect)
	opts.SetConnectionLostHandler(onLost)
	return opts
}

// waitConnect polls the connect token until it completes, ctx ends or stopCh closes.
// With ConnectRetry the token only completes once a connection is up.
func waitConnect(ctx context.Context, stopCh <-chan struct{}, token paho.Token) error {
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return errStopped
		default:
		}
	}
}
