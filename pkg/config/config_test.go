package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const sampleConfig = `
target:
  host: 10.0.0.1
  credentials:
    username: admin
    passphrase: secret
  connection:
    protocol: https
    port: 8443
    allowSelfSignedCert: true
loader:
  chunkSize: 50
  workers: 4
  timeout: 10s
  retry:
    maxAttempts: 2
    delay: 500ms
  rateLimit:
    requestsPerSecond: 20
cache:
  ttl: 2m
collector:
  workers: 2
endpoints:
  - name: virtualServers
    path: /mgmt/tm/ltm/virtual
    includeStats: true
    expandReferences:
      policiesReference: {}
      poolReference:
        includeStats: true
  - name: bash
    path: /mgmt/tm/util/bash
    method: post
    body:
      command: run
      utilCmdArgs: "-c 'tmsh show sys {{what}}'"
properties:
  virtualServers: {}
  sysInfo:
    endpoint: bash
    outputName: system
    options:
      replaceStrings:
        "\\{\\{what\\}\\}": version
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Target.Connection.Port != 8443 || !cfg.Target.Connection.AllowSelfSignedCert {
		t.Errorf("Connection = %+v", cfg.Target.Connection)
	}
	if cfg.Loader.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Loader.Timeout)
	}
	if len(cfg.Endpoints) != 2 {
		t.Fatalf("Endpoints = %d, want 2", len(cfg.Endpoints))
	}
	if !cfg.Endpoints[0].ExpandReferences["poolReference"].IncludeStats {
		t.Error("poolReference.includeStats = false, want true")
	}
	if _, ok := cfg.Endpoints[1].Body.(map[string]any); !ok {
		t.Errorf("bash body = %T, want object", cfg.Endpoints[1].Body)
	}

	prop := cfg.Properties["sysInfo"]
	if prop.Endpoint != "bash" || prop.OutputName != "system" {
		t.Errorf("sysInfo = %+v", prop)
	}
	if got := prop.Options.ReplaceStrings[`\{\{what\}\}`]; got != "version" {
		t.Errorf("replaceStrings = %v", prop.Options.ReplaceStrings)
	}

	logger := zerolog.Nop()
	lc := cfg.LoaderConfig(&logger, nil)
	if lc.ChunkSize != 50 || lc.Workers != 4 {
		t.Errorf("LoaderConfig chunk/workers = %d/%d, want 50/4", lc.ChunkSize, lc.Workers)
	}
	if lc.Retry.MaxAttempts != 2 || lc.Retry.Delay != 500*time.Millisecond {
		t.Errorf("LoaderConfig retry = %+v", lc.Retry)
	}
	if lc.RateLimit.RequestsPerSecond != 20 {
		t.Errorf("LoaderConfig rate = %v, want 20", lc.RateLimit.RequestsPerSecond)
	}
	if lc.Store != nil {
		t.Error("LoaderConfig store set without a store")
	}

	opts := cfg.CollectorOptions(&logger)
	if opts.Workers != 2 || opts.IsCustom {
		t.Errorf("CollectorOptions = %+v", opts)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "no host", doc: "target: {credentials: {token: t}}\nproperties: {a: {}}\n"},
		{name: "bad credentials", doc: "target: {host: h}\nproperties: {a: {}}\n"},
		{name: "no properties", doc: "target: {host: h, credentials: {token: t}}\n"},
		{name: "negative workers", doc: "target: {host: h, credentials: {token: t}}\nloader: {workers: -1}\nproperties: {a: {}}\n"},
		{name: "endpoint without path", doc: "target: {host: h, credentials: {token: t}}\nendpoints: [{name: x}]\nproperties: {a: {}}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Parse() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	doc := "target: {host: h, credentials: {token: t}, hots: x}\nproperties: {a: {}}\n"
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("Parse() error = nil, want unknown field error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poller.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Target.Host != "10.0.0.1" {
		t.Errorf("Host = %q, want 10.0.0.1", cfg.Target.Host)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file error = nil")
	}
}
