package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.ListenAddr != defaultListenAddr || c.DataDir != defaultDataDir {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if want := "bolt://" + filepath.Join(defaultDataDir, "state.db"); c.StateDSN != want {
		t.Fatalf("state dsn %q, want %q", c.StateDSN, want)
	}
	if c.SweepCheckInterval != time.Hour {
		t.Fatalf("sweep check interval %v", c.SweepCheckInterval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen_addr: ":9000"
data_dir: /srv/minibackup
state_dsn: memory://
trust_proxy: true
sweep_check_interval: 15m
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LISTEN_ADDR", ":9443")
	t.Setenv("ALLOW_INSECURE", "true")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.ListenAddr != ":9443" {
		t.Errorf("env override ignored: %s", c.ListenAddr)
	}
	if c.DataDir != "/srv/minibackup" || c.StateDSN != "memory://" || !c.TrustProxy || !c.AllowInsecure {
		t.Errorf("unexpected config %+v", c)
	}
	if c.SweepCheckInterval != 15*time.Minute {
		t.Errorf("sweep check interval %v", c.SweepCheckInterval)
	}
	if c.ObjectsDir() != filepath.Join("/srv/minibackup", "objects") {
		t.Errorf("objects dir %s", c.ObjectsDir())
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.TLSCert = "cert.pem"
	if err := c.Validate(); err == nil {
		t.Error("half-configured TLS accepted")
	}

	c = Default()
	c.DataDir = " "
	if err := c.Validate(); err == nil {
		t.Error("empty data dir accepted")
	}
}
