package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestParseKeyMaterial(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	hexKey := hex.EncodeToString(raw)

	decoded, err := ParseKeyMaterial(hexKey)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	if len(decoded) != 32 || decoded[1] != 1 {
		t.Fatalf("hex decoded wrong: %x", decoded)
	}

	plain, err := ParseKeyMaterial("a-plain-passphrase-of-enough-size")
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if string(plain) != "a-plain-passphrase-of-enough-size" {
		t.Fatalf("raw material altered: %q", plain)
	}

	if _, err := ParseKeyMaterial("short"); err == nil {
		t.Fatal("short material should be rejected")
	}
	if _, err := ParseKeyMaterial("   "); err == nil {
		t.Fatal("blank material should be rejected")
	}
}

func TestLoad_FileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := `
logging:
  level: debug
engine:
  methodology: HANAFI
  currency: gbp
keys:
  current:
    version: v2
    env_var: TEST_KEY_V2
  previous:
    - version: v1
      env_var: TEST_KEY_V1
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ZAKAT_CURRENCY", "usd")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %s", cfg.Logging.Level)
	}
	if cfg.Engine.Methodology != "HANAFI" {
		t.Fatalf("methodology = %s", cfg.Engine.Methodology)
	}
	if cfg.Engine.Currency != "USD" {
		t.Fatalf("env override should win and normalize, got %s", cfg.Engine.Currency)
	}
	if cfg.Keys.Current.Version != "v2" || len(cfg.Keys.Previous) != 1 {
		t.Fatalf("keys = %#v", cfg.Keys)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Methodology != "STANDARD" || cfg.Engine.Currency != "USD" {
		t.Fatalf("defaults wrong: %#v", cfg.Engine)
	}
}

func TestKeyRing(t *testing.T) {
	cfg := Default()
	cfg.Keys.Current = KeyRef{Version: "v2", EnvVar: "TEST_RING_V2"}
	cfg.Keys.Previous = []KeyRef{{Version: "v1", EnvVar: "TEST_RING_V1"}}

	t.Setenv("TEST_RING_V2", "fedcba9876543210fedcba9876543210")
	t.Setenv("TEST_RING_V1", "0123456789abcdef0123456789abcdef")

	ring, err := cfg.KeyRing()
	if err != nil {
		t.Fatalf("key ring: %v", err)
	}
	if ring.Current.Version != "v2" {
		t.Fatalf("current version = %s", ring.Current.Version)
	}
	if len(ring.Previous) != 1 || ring.Previous[0].Version != "v1" {
		t.Fatalf("previous = %#v", ring.Previous)
	}

	os.Unsetenv("TEST_RING_V1")
	if _, err := cfg.KeyRing(); err == nil {
		t.Fatal("missing env var should fail")
	}
}
