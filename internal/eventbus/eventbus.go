// Package eventbus publishes job lifecycle events to an MQTT broker so
// external systems can react to a decode without polling the status
// endpoint.
package eventbus

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config configures the broker connection and publish behavior.
type Config struct {
	Broker   string
	Username string
	Password string
	Topic    string // base topic; events publish under Topic+"/"+event
	QoS      byte
	Retain   bool
	TLS      TLSConfig
}

// TLSConfig configures an optional TLS connection to the broker.
type TLSConfig struct {
	Enabled    bool
	CACert     string
	ClientCert string
	ClientKey  string
}

// Event is one job lifecycle notification.
type Event struct {
	JobID     string    `json:"job_id"`
	Type      string    `json:"event"` // "queued", "processing", "completed", "failed"
	Timestamp time.Time `json:"timestamp"`
	NAC       int       `json:"nac,omitempty"`
	Encrypted bool      `json:"encrypted,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Bus publishes Events to an MQTT broker. A nil *Bus is valid and every
// method on it is a no-op, so callers can wire it unconditionally even
// when no broker is configured.
type Bus struct {
	client mqtt.Client
	config Config
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "p25ingest_" + hex.EncodeToString(b)
}

func loadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if cfg.CACert != "" {
		ca, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("eventbus: read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("eventbus: parse CA cert")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("eventbus: load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// Connect dials the configured broker and returns a ready Bus. If
// cfg.Broker is empty, Connect returns a nil *Bus and a nil error —
// the event bus is an optional component.
func Connect(cfg Config) (*Bus, error) {
	if cfg.Broker == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.TLS.Enabled {
		tlsCfg, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("eventbus: connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("eventbus: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("eventbus: connect to broker: %w", token.Error())
	}
	log.Printf("eventbus: connected to %s", cfg.Broker)

	return &Bus{client: client, config: cfg}, nil
}

// Publish sends evt to topic "<base>/<event type>". Errors are logged,
// never returned — a broker outage must not fail the job it reports on.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("eventbus: marshal event for job %s: %v", evt.JobID, err)
		return
	}
	topic := b.config.Topic + "/" + evt.Type
	token := b.client.Publish(topic, b.config.QoS, b.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		log.Printf("eventbus: publish to %s: %v", topic, token.Error())
	}
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to drain.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.client.Disconnect(250)
}
