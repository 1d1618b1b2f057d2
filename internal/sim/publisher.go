package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sensorhub-server/internal/config"
)

type Publisher interface {
	Publish(ctx context.Context, p Payload) error
}

// Encode renders p with either the API field names or the original firmware's.
func Encode(p Payload, deviceFieldNames bool) ([]byte, error) {
	if deviceFieldNames {
		return json.Marshal(map[string]any{"suhu": p.Temperature, "kelembapan": p.Humidity, "cahaya": p.Light})
	}
	return json.Marshal(map[string]any{"temperature": p.Temperature, "humidity": p.Humidity, "light": p.Light})
}

type HTTPPublisher struct {
	client           *http.Client
	url              string
	deviceFieldNames bool
}

func NewHTTPPublisher(serverURL string, deviceFieldNames bool, client *http.Client) *HTTPPublisher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPublisher{client: client, url: serverURL + "/api/v1/readings", deviceFieldNames: deviceFieldNames}
}

func (h *HTTPPublisher) Publish(ctx context.Context, p Payload) error {
	body, err := Encode(p, h.deviceFieldNames)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post reading: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post reading: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// MQTTPublisher publishes readings with QoS 1 on the device topic.
type MQTTPublisher struct {
	client           mqtt.Client
	cfg              config.MQTTConfig
	topic            string
	deviceFieldNames bool
	logger           *slog.Logger
	mu               sync.RWMutex
	connected        bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTTPublisher(cfg config.MQTTConfig, topic string, deviceFieldNames bool, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &MQTTPublisher{
		cfg:              cfg,
		topic:            topic,
		deviceFieldNames: deviceFieldNames,
		logger:           logger,
		stopCh:           make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the initial connection, and respects ctx and Disconnect().
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}
	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()
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
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, payload Payload) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := Encode(payload, p.deviceFieldNames)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}
	p.logger.Debug("published reading", "topic", p.topic)
	return nil
}

func (p *MQTTPublisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns "publisher stopped".
func (p *MQTTPublisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
