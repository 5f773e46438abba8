package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":9090\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Queue.Workers != 4 {
		t.Fatalf("queue.workers = %d, want default 4", cfg.Queue.Workers)
	}
	if cfg.Queue.Capacity != 64 {
		t.Fatalf("queue.capacity = %d, want default 64", cfg.Queue.Capacity)
	}
	if cfg.Output.Root != "./output" {
		t.Fatalf("output.root = %q, want default ./output", cfg.Output.Root)
	}
	if cfg.MCP.Transport != "stdio" {
		t.Fatalf("mcp.transport = %q, want default stdio", cfg.MCP.Transport)
	}
}

func TestLoadRejectsMissingListen(t *testing.T) {
	path := writeConfig(t, "queue:\n  workers: 2\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when server.listen is not configured")
	}
}

func TestLoadRejectsNegativeWorkers(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\nqueue:\n  workers: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a negative worker count")
	}
}

func TestLoadRejectsMQTTEnabledWithoutBroker(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\nmqtt:\n  enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when mqtt.enabled is true but mqtt.broker is blank")
	}
}

func TestLoadRejectsTLSCertWithoutKey(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\n  tls_cert_path: /etc/tls/cert.pem\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when server.tls_cert_path is set without server.tls_key_path")
	}
}

func TestLoadAcceptsTLSCertAndKeyTogetherAndReportsEnabled(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\n  tls_cert_path: /etc/tls/cert.pem\n  tls_key_path: /etc/tls/key.pem\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Server.TLSEnabled() {
		t.Fatal("expected TLSEnabled to report true when both cert and key paths are set")
	}
}

func TestServerConfigTLSEnabledFalseWhenUnset(t *testing.T) {
	var sc ServerConfig
	if sc.TLSEnabled() {
		t.Fatal("expected TLSEnabled to report false when neither path is set")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error reading a nonexistent config file")
	}
}

func TestTimeoutHelpersConvertSecondsToDuration(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\n  request_timeout_seconds: 5\nqueue:\n  job_timeout_seconds: 10\n  job_ttl_seconds: 20\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RequestTimeout().Seconds() != 5 {
		t.Fatalf("RequestTimeout = %v, want 5s", cfg.RequestTimeout())
	}
	if cfg.JobTimeout().Seconds() != 10 {
		t.Fatalf("JobTimeout = %v, want 10s", cfg.JobTimeout())
	}
	if cfg.JobTTL().Seconds() != 20 {
		t.Fatalf("JobTTL = %v, want 20s", cfg.JobTTL())
	}
}
