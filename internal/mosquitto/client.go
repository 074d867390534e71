package mosquitto

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type Client struct {
	client mqtt.Client
	log    *slog.Logger
}

type Config struct {
	Broker   string
	ClientId string
	Username string
	Password string
	Topics   []string
	QoS      byte
}

const (
	broker_connection_limit = 60 // seconds to wait for the broker to come up
)

// NewClient connects to the broker and subscribes every topic to handler.
// Subscriptions are restored after reconnects.
func NewClient(cfg Config, handler *MqttMsgHandler, log *slog.Logger) (*Client, error) {
	if cfg.ClientId == "" {
		cfg.ClientId = "indoornav-" + uuid.NewString()[:8]
	}

	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler.HandleMsg(msg.Payload()); err != nil {
			log.Warn("dropped beacon message", "topic", msg.Topic(), "err", err)
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientId)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		for _, topic := range cfg.Topics {
			token := c.Subscribe(topic, cfg.QoS, onMessage)
			if !token.WaitTimeout(10 * time.Second) {
				log.Error("subscribe timed out", "topic", topic)
				continue
			}
			if err := token.Error(); err != nil {
				log.Error("subscribe failed", "topic", topic, "err", err)
				continue
			}
			log.Info("subscribed", "topic", topic)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("broker connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	isConnected := token.WaitTimeout(broker_connection_limit * time.Second)
	if !isConnected {
		return nil, fmt.Errorf("broker %s: connection timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client, log: log}, nil
}

func (c *Client) Close() {
	c.client.Disconnect(250)
	c.log.Info("broker connection closed")
}
