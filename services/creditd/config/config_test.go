package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creditd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :9000 "
storage:
  data_dir: " /var/lib/creditd "
tls:
  allow_insecure: true
auth:
  hmac_secret: " s3cret "
cors:
  allowed_origins: [" https://app.example ", " "]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if cfg.Storage.Backend != BackendLevelDB || cfg.Storage.DataDir != "/var/lib/creditd" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.GenesisPath != defaultGenesisPath {
		t.Fatalf("unexpected genesis path %q", cfg.GenesisPath)
	}
	if cfg.Auth.Secret() != "s3cret" {
		t.Fatalf("secret not trimmed")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("expected blank origins to be dropped, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Timeouts.Shutdown != defaultShutdownWait || cfg.Timeouts.Read != 15*time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg.Timeouts)
	}
}

func TestSecretFromEnvironment(t *testing.T) {
	t.Setenv("CREDITD_TEST_SECRET", "from-env")
	cfg, err := Parse([]byte(`
storage: {backend: memory}
tls: {allow_insecure: true}
auth:
  hmac_secret_env: CREDITD_TEST_SECRET
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Auth.Secret() != "from-env" {
		t.Fatalf("expected secret from environment, got %q", cfg.Auth.Secret())
	}
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"missing secret": {
			doc:  "storage: {backend: memory}\ntls: {allow_insecure: true}\n",
			want: "auth",
		},
		"leveldb without dir": {
			doc:  "tls: {allow_insecure: true}\nauth: {hmac_secret: x}\n",
			want: "data_dir",
		},
		"unknown backend": {
			doc:  "storage: {backend: redis}\ntls: {allow_insecure: true}\nauth: {hmac_secret: x}\n",
			want: "unknown backend",
		},
		"cert without key": {
			doc:  "storage: {backend: memory}\ntls: {cert: a.pem}\nauth: {hmac_secret: x}\n",
			want: "cert and key",
		},
		"plaintext not allowed": {
			doc:  "storage: {backend: memory}\nauth: {hmac_secret: x}\n",
			want: "allow_insecure",
		},
		"sample ratio": {
			doc:  "storage: {backend: memory}\ntls: {allow_insecure: true}\nauth: {hmac_secret: x}\ntelemetry: {sample_ratio: 2}\n",
			want: "sample_ratio",
		},
		"bad trusted proxy": {
			doc:  "storage: {backend: memory}\ntls: {allow_insecure: true}\nauth: {hmac_secret: x}\nrate_limit: {trusted_proxies: [lb.internal]}\n",
			want: "trusted proxy",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(" "); err == nil {
		t.Fatalf("expected path error")
	}
}
