package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	"github.com/SebastianAlessandro/gcam-core/infra/logger"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestNewClientOptions_RequiresBroker(t *testing.T) {
	if _, err := NewClientOptions(Config{ClientID: "id"}); err == nil {
		t.Fatal("expected error without broker")
	}
}

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestRecordMarkets_TopicsAndPayload(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "sim/", QoS: 1, Retain: true}
	pub, err := NewPricePublisher(cfg, nil, nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	now := time.Now()
	err = pub.RecordMarkets([]coremetrics.MarketSnapshot{
		{RunID: "r1", Period: 2, Market: "USAoil", Good: "oil", Region: "USA", Price: 50, Time: now},
		{RunID: "r1", Period: 2, Market: "Rest of Worldgas", Good: "gas", Region: "Rest of World", Price: 3, Time: now},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(mc.published))
	}
	first := mc.published[0]
	if first.topic != "sim/market/USA/oil/price" || first.qos != 1 || !first.retained {
		t.Fatalf("unexpected publish %+v", first)
	}
	if mc.published[1].topic != "sim/market/Rest_of_World/gas/price" {
		t.Fatalf("topic not escaped: %s", mc.published[1].topic)
	}
	var msg pricePayload
	if err := json.Unmarshal(first.payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.RunID != "r1" || msg.Price != 50 || msg.Period != 2 || msg.Timestamp != now.UnixMilli() {
		t.Fatalf("unexpected payload %+v", msg)
	}
}

type lineLogger struct {
	logger.NopLogger
	lines []string
}

func (l *lineLogger) Errorf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestNewPricePublisher_LogsConnectionLoss(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	log := &lineLogger{}
	if _, err := NewPricePublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, nil, log); err != nil {
		t.Fatalf("publisher: %v", err)
	}
	mc.opts.OnConnectionLost(nil, errors.New("broker gone"))
	if len(log.lines) != 1 || log.lines[0] != "connection lost: broker gone" {
		t.Fatalf("unexpected log lines %q", log.lines)
	}
}

func TestRecordPeriodResult(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPricePublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, nil, nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.RecordPeriodResult(coremetrics.PeriodResult{Period: 4, Converged: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "gcam/period/4" {
		t.Fatalf("unexpected publish %+v", mc.published)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	pub, err := NewPricePublisher(cfg, nil, nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	pub, err := NewPricePublisher(cfg, nil, nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.RecordPeriodResult(coremetrics.PeriodResult{}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	pub, err := NewPricePublisher(cfg, mon, nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	err = pub.RecordPeriodResult(coremetrics.PeriodResult{Period: 1})
	if !errors.Is(err, fail) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["topic"] != "gcam/period/1" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic: topic, qos: qos, retained: retained, payload: b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
