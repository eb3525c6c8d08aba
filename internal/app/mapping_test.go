package app

import (
	"testing"
	"time"

	"schedulebot/internal/bot"
	"schedulebot/internal/config"
	logx "schedulebot/pkg/logx"
)

func resolved(t *testing.T, cfg *config.Config) config.Resolved {
	t.Helper()
	cfg.Telegram.Token = "123:abc"
	r, err := config.Validate(cfg)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return r
}

func TestLogConfigNeedsTarget(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Telegram.Enabled = true

	if got := logConfig(cfg); got.Telegram.Enabled {
		t.Fatal("telegram sink enabled without group_log")
	}
	cfg.Telegram.GroupLog = -100123
	got := logConfig(cfg)
	if !got.Telegram.Enabled || got.Telegram.ChatID != -100123 || got.Level != "debug" {
		t.Fatalf("logConfig = %+v", got)
	}
}

func TestNotifierConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Notifier.Enabled = true
	cfg.Notifier.DefaultTime = "7:30"
	n := notifierConfig(resolved(t, cfg))
	if !n.Enabled || n.DefaultTime != "07:30" || n.SendGap != 100*time.Millisecond {
		t.Fatalf("notifierConfig = %+v", n)
	}
	if n.Location.String() != config.DefaultTimezone {
		t.Fatalf("Location = %v", n.Location)
	}
}

func TestComponentOptions(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: "./users.db"}
	cfg.Cache.TTL = "10m"
	cfg.HTTP = config.HTTPConfig{Enabled: true, Token: "t"}
	cfg.Broadcast = config.BroadcastConfig{Enabled: true, RatePerSec: 5}
	r := resolved(t, cfg)

	if st := storageConfig(r); st.Driver != "sqlite" || st.Path != "./users.db" || st.BusyTimeout != 5*time.Second {
		t.Fatalf("storageConfig = %+v", st)
	}
	if c := cacheOptions(r); c.TTL != 10*time.Minute || c.HardRefresh != 12*time.Hour || c.Workers != 4 {
		t.Fatalf("cacheOptions = %+v", c)
	}
	if s := sourceOptions(r, logx.Nop()); s.BaseURL != config.DefaultBaseURL || s.Retries != 3 {
		t.Fatalf("sourceOptions = %+v", s)
	}
	if h := httpConfig(r); h.Addr != config.DefaultHTTPAddr || h.Token != "t" || h.WriteTimeout != 30*time.Second {
		t.Fatalf("httpConfig = %+v", h)
	}
	if b := broadcastConfig(r); b.RatePerSec != 5 || b.Workers != 0 {
		t.Fatalf("broadcastConfig = %+v", b)
	}
}

func TestTZLabel(t *testing.T) {
	t.Parallel()
	nsk, err := time.LoadLocation(config.DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	if got := tzLabel(nsk); got != bot.DefaultTZLabel {
		t.Fatalf("tzLabel(nsk) = %q", got)
	}
	if got := tzLabel(time.FixedZone("X", 3*3600)); got != "X (UTC+3)" {
		t.Fatalf("tzLabel(fixed) = %q", got)
	}
}
