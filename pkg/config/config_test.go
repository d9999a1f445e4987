package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/source"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("", env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if c.Eventbrite.Timeout != 30*time.Second || c.Notify.SMTPAddr != "smtp.gmail.com:465" || c.Notify.Gateway != "vtext.com" {
		t.Fatalf("defaults=%+v", c)
	}
	if p := c.FailurePolicy(); p.Retries != 0 || p.OnExhausted != source.Truncate {
		t.Fatalf("policy=%+v", p)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locale.yaml")
	data := []byte(`
database_url: sqlite:file:from-file.db
eventbrite:
  token: file-token
  timeout: 5s
  retries: 2
  on_exhausted: abort
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path, env(map[string]string{
		EnvToken: "env-token",
		EnvPhone: "5551234567",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if c.DatabaseURL != "sqlite:file:from-file.db" {
		t.Fatalf("db=%q", c.DatabaseURL)
	}
	if c.Eventbrite.Token != "env-token" {
		t.Fatalf("env must override file, token=%q", c.Eventbrite.Token)
	}
	if c.Eventbrite.Timeout != 5*time.Second || c.Log.Level != "debug" || c.Notify.Phone != "5551234567" {
		t.Fatalf("cfg=%+v", c)
	}
	if err := c.ValidateCrawl(); err != nil {
		t.Fatal(err)
	}
	if p := c.FailurePolicy(); p.Retries != 2 || p.OnExhausted != source.Abort {
		t.Fatalf("policy=%+v", p)
	}
}

func TestLoad_ExplicitZeroDurationsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locale.yaml")
	data := []byte("eventbrite:\n  timeout: 0s\n  backoff: 0s\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path, env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if c.Eventbrite.Timeout != 0 {
		t.Fatalf("timeout=%v want 0", c.Eventbrite.Timeout)
	}
	if c.Eventbrite.Backoff != 0 {
		t.Fatalf("backoff=%v want 0", c.Eventbrite.Backoff)
	}
	if c.Eventbrite.MaxBackoff != 10*time.Second {
		t.Fatalf("max_backoff=%v want default", c.Eventbrite.MaxBackoff)
	}
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	if errmodel.ExitCode(err) != errmodel.ExitMisconfigured {
		t.Fatalf("err=%v", err)
	}
}

func TestValidateCrawl_Missing(t *testing.T) {
	c := Default()
	err := c.ValidateCrawl()
	if err == nil || !errmodel.IsCategory(err, errmodel.CategoryConfig) {
		t.Fatalf("err=%v", err)
	}
	c.DatabaseURL = "sqlite:"
	c.Eventbrite.Token = "t"
	c.Eventbrite.OnExhausted = "explode"
	if err := c.ValidateCrawl(); errmodel.ExitCode(err) != errmodel.ExitMisconfigured {
		t.Fatalf("err=%v", err)
	}
}

func TestNotifySettings(t *testing.T) {
	c := Default()
	if c.NotifyEnabled() || c.ValidateNotify() == nil {
		t.Fatal("notify should be disabled by default")
	}
	c.ApplyEnv(env(map[string]string{EnvMailUser: "u@gmail.com", EnvMailPass: "pw", EnvPhone: "5551234567"}))
	if !c.NotifyEnabled() || c.ValidateNotify() != nil {
		t.Fatalf("notify=%+v", c.Notify)
	}
}
