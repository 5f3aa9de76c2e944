package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"farm_telemetry/config"
	"farm_telemetry/internal/logger"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Message is one payload received on a subscribed topic.
type Message struct {
	Topic   string
	Payload []byte
}

// MQTT is the message-bus transport: it subscribes to the device data topic
// and publishes relay commands.
type MQTT struct {
	cm        *autopaho.ConnectionManager
	cfg       config.MQTTConfig
	log       *logger.Logger
	connected atomic.Bool
}

// NewMQTT starts a managed connection. Reconnects are handled by autopaho and
// the data topic is re-subscribed on every connection up. Received payloads
// are passed to handle, which must not block for long.
func NewMQTT(ctx context.Context, cfg config.MQTTConfig, log *logger.Logger, handle func(Message)) (*MQTT, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker url: %w", err)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		if clientID, err = randomClientID(4); err != nil {
			return nil, fmt.Errorf("generate client id: %w", err)
		}
	}

	m := &MQTT{cfg: cfg, log: log}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		ConnectUsername:               cfg.Username,
		ConnectPassword:               []byte(cfg.Password),
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         0,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			m.connected.Store(true)
			log.Infow("mqtt_connected", "broker", cfg.Broker)
			subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if _, err := cm.Subscribe(subCtx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{{Topic: cfg.DataTopic, QoS: 0}},
			}); err != nil {
				log.Errorw("mqtt_subscribe_failed", "topic", cfg.DataTopic, "err", err)
			}
		},
		OnConnectError: func(err error) {
			m.connected.Store(false)
			log.Warnw("mqtt_connect_error", "err", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
			OnClientError: func(err error) {
				m.connected.Store(false)
				log.Warnw("mqtt_client_error", "err", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				m.connected.Store(false)
				if d.Properties != nil {
					log.Warnw("mqtt_server_disconnect", "reason", d.Properties.ReasonString)
				} else {
					log.Warnw("mqtt_server_disconnect", "code", d.ReasonCode)
				}
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return nil, fmt.Errorf("start mqtt connection: %w", err)
	}
	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		handle(Message{Topic: pr.Packet.Topic, Payload: pr.Packet.Payload})
		return true, nil
	})
	m.cm = cm
	return m, nil
}

// Connected reports the last observed transport state.
func (m *MQTT) Connected() bool { return m.connected.Load() }

// Dispatch publishes R{n}ON or R{n}OFF on the command topic.
func (m *MQTT) Dispatch(ctx context.Context, relayID int, on bool) error {
	cmd := RelayCommand(relayID, on)
	if _, err := m.cm.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   m.cfg.CommandTopic,
		Payload: []byte(cmd),
	}); err != nil {
		return fmt.Errorf("publish %s: %w", cmd, err)
	}
	return nil
}

// Close disconnects and waits for the connection manager to finish.
func (m *MQTT) Close(ctx context.Context) error {
	if err := m.cm.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mqtt: %w", err)
	}
	m.connected.Store(false)
	return nil
}

// RelayCommand renders the relay command text understood by the controller.
func RelayCommand(relayID int, on bool) string {
	if on {
		return fmt.Sprintf("R%dON", relayID)
	}
	return fmt.Sprintf("R%dOFF", relayID)
}

func randomClientID(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "farm-telemetry-" + hex.EncodeToString(b), nil
}
