package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	coremon "github.com/SebastianAlessandro/gcam-core/core/monitoring"
	"github.com/SebastianAlessandro/gcam-core/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// TopicPrefix is prepended to every topic, "gcam" by default.
	TopicPrefix string      `json:"topic_prefix"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	AuthMethod  string      `json:"auth_method"`
	QoS         byte        `json:"qos"`
	Retain      bool        `json:"retain"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PricePublisher publishes solved market prices and period outcomes to an
// MQTT broker. It is a metrics sink so it can be configured next to the
// Prometheus and InfluxDB sinks.
type PricePublisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
	monitor    coremon.Monitor
}

// NewPricePublisher connects to the broker. A nil monitor drops publish
// failures and a nil log discards connection events.
func NewPricePublisher(cfg Config, mon coremon.Monitor, log logger.Logger) (*PricePublisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if mon == nil {
		mon = coremon.NopMonitor{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	p := &PricePublisher{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
		monitor:    mon,
	}
	if p.prefix == "" {
		p.prefix = "gcam"
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

var topicEscaper = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// PriceTopic returns the topic carrying the price of good in region.
func (p *PricePublisher) PriceTopic(region, good string) string {
	return p.prefix + "/market/" + topicEscaper.Replace(region) + "/" + topicEscaper.Replace(good) + "/price"
}

// PeriodTopic returns the topic carrying the outcome of period.
func (p *PricePublisher) PeriodTopic(period int) string {
	return p.prefix + "/period/" + strconv.Itoa(period)
}

type pricePayload struct {
	RunID                string  `json:"run_id"`
	Period               int     `json:"period"`
	Market               string  `json:"market"`
	Price                float64 `json:"price"`
	Demand               float64 `json:"demand"`
	Supply               float64 `json:"supply"`
	RelativeExcessDemand float64 `json:"relative_excess_demand"`
	Timestamp            int64   `json:"timestamp"`
}

type periodPayload struct {
	RunID                   string  `json:"run_id"`
	Period                  int     `json:"period"`
	Converged               bool    `json:"converged"`
	Iterations              int     `json:"iterations"`
	MaxRelativeExcessDemand float64 `json:"max_relative_excess_demand"`
	WorstMarket             string  `json:"worst_market"`
	Timestamp               int64   `json:"timestamp"`
}

// RecordPeriodResult publishes the outcome of a period.
func (p *PricePublisher) RecordPeriodResult(res coremetrics.PeriodResult) error {
	return p.publish(p.PeriodTopic(res.Period), periodPayload{
		RunID:                   res.RunID,
		Period:                  res.Period,
		Converged:               res.Converged,
		Iterations:              res.Iterations,
		MaxRelativeExcessDemand: res.MaxRelativeExcessDemand,
		WorstMarket:             res.WorstMarket,
		Timestamp:               res.Time.UnixMilli(),
	})
}

// RecordMarkets publishes one price message per market.
func (p *PricePublisher) RecordMarkets(snaps []coremetrics.MarketSnapshot) error {
	var errs []error
	for _, m := range snaps {
		errs = append(errs, p.publish(p.PriceTopic(m.Region, m.Good), pricePayload{
			RunID:                m.RunID,
			Period:               m.Period,
			Market:               m.Market,
			Price:                m.Price,
			Demand:               m.Demand,
			Supply:               m.Supply,
			RelativeExcessDemand: m.RelativeExcessDemand,
			Timestamp:            m.Time.UnixMilli(),
		}))
	}
	return errors.Join(errs...)
}

func (p *PricePublisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugf("published %s", topic)
			return nil
		}
		p.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.monitor.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close gracefully closes the MQTT connection.
func (p *PricePublisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}
