package eventbus

import (
	"strings"
	"testing"
	"time"
)

func TestConnectWithEmptyBrokerReturnsNilBusAndNoError(t *testing.T) {
	bus, err := Connect(Config{})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if bus != nil {
		t.Fatal("expected a nil *Bus when no broker is configured")
	}
}

func TestNilBusPublishAndCloseAreNoOps(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{JobID: "abc", Type: "queued", Timestamp: time.Now()})
	bus.Close()
}

func TestGenerateClientIDHasExpectedPrefixAndIsUnique(t *testing.T) {
	a := generateClientID()
	b := generateClientID()
	if !strings.HasPrefix(a, "p25ingest_") {
		t.Fatalf("client id %q missing expected prefix", a)
	}
	if a == b {
		t.Fatal("expected two generated client ids to differ")
	}
}

func TestLoadTLSConfigDisabledReturnsNil(t *testing.T) {
	cfg, err := loadTLSConfig(TLSConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil {
		t.Fatal("expected nil tls.Config when TLS is disabled")
	}
}

func TestLoadTLSConfigMissingCACertReturnsError(t *testing.T) {
	_, err := loadTLSConfig(TLSConfig{Enabled: true, CACert: "/nonexistent/ca.pem"})
	if err == nil {
		t.Fatal("expected an error reading a missing CA cert file")
	}
}
