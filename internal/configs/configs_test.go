package configs

import "testing"

func Test_ParseConfig_Yaml(t *testing.T) {
	contents := []byte(`
public:
  name: public
  port: 8080
control:
  name: control
  port: 8081
tokenService:
  baseUrl: http://tokens.internal:9000
  cacheTtlSeconds: 60
relay:
  chunkQueueSize: 512
  liveAfterMs: 2000
ffmpeg:
  binaryPath: ./bin/ffmpeg
`)
	c, err := parseConfig(contents)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	if c.Public.Port != 8080 || c.Control.Port != 8081 {
		t.Fatalf("ports not parsed: %+v", c)
	}
	if c.TokenService.BaseUrl != "http://tokens.internal:9000" {
		t.Fatalf("tokenService not parsed: %+v", c.TokenService)
	}
	if c.Relay.ChunkQueueSize != 512 || c.Relay.LiveAfterMs != 2000 {
		t.Fatalf("relay not parsed: %+v", c.Relay)
	}
	if c.Ffmpeg.BinaryPath != "./bin/ffmpeg" {
		t.Fatalf("ffmpeg not parsed: %+v", c.Ffmpeg)
	}
}

func Test_ParseConfig_Json(t *testing.T) {
	contents := []byte(`{
		"public": {"port": 8080},
		"sqlite": {"path": "/tmp/relay.db"},
		"eventStore": {"enabled": true, "host": "mqtt.internal", "port": 1883}
	}`)
	c, err := parseConfig(contents)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	if c.Public.Port != 8080 {
		t.Fatalf("public not parsed: %+v", c.Public)
	}
	if c.Sqlite.Path != "/tmp/relay.db" {
		t.Fatalf("sqlite not parsed: %+v", c.Sqlite)
	}
	if !c.EventStore.Enabled || c.EventStore.Host != "mqtt.internal" {
		t.Fatalf("eventStore not parsed: %+v", c.EventStore)
	}
}

func Test_ParseConfig_Garbage(t *testing.T) {
	if _, err := parseConfig([]byte("{not valid: in either")); err == nil {
		t.Fatal("expected parse error")
	}
}

func Test_TlsConfig_IsEnabled(t *testing.T) {
	if (TlsConfig{}).IsEnabled() {
		t.Fatal("empty tls config must be disabled")
	}
	if !(TlsConfig{Cert: "cert.pem", Key: "key.pem"}).IsEnabled() {
		t.Fatal("cert plus key must enable tls")
	}
	if !(TlsConfig{Enabled: true}).IsEnabled() {
		t.Fatal("explicit flag must enable tls")
	}
}
