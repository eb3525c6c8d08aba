package app

import (
	"schedulebot/internal/config"
	"schedulebot/internal/httpapi"
	"schedulebot/internal/notifier"
	"schedulebot/internal/notifier/broadcast"
	"schedulebot/internal/schedcache"
	"schedulebot/internal/source"
	"schedulebot/internal/storage"
	logx "schedulebot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
			Compress:   l.File.Compress,
		},
		Telegram: logx.TelegramConfig{
			// The sink needs a target chat.
			Enabled:    l.Telegram.Enabled && cfg.Telegram.GroupLog != 0,
			ChatID:     cfg.Telegram.GroupLog,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func storageConfig(r config.Resolved) storage.Config {
	return storage.Config{
		Driver:      r.Raw.Storage.Driver,
		Path:        r.Raw.Storage.Path,
		BusyTimeout: r.StorageBusyTimeout,
	}
}

func sourceOptions(r config.Resolved, log logx.Logger) source.Options {
	s := r.Raw.Source
	return source.Options{
		BaseURL:    s.BaseURL,
		UserAgent:  s.UserAgent,
		Timeout:    r.SourceTimeout,
		Retries:    s.Retries,
		RetryDelay: r.SourceRetryDelay,
		RatePerSec: s.RatePerSec,
		Log:        log,
	}
}

func cacheOptions(r config.Resolved) schedcache.Options {
	return schedcache.Options{
		TTL:          r.CacheTTL,
		HardRefresh:  r.HardRefresh,
		FetchTimeout: r.FetchTimeout,
		Workers:      r.RefreshWorkers,
	}
}

func notifierConfig(r config.Resolved) notifier.Config {
	return notifier.Config{
		Enabled:     r.Raw.Notifier.Enabled,
		Location:    r.Location,
		DefaultTime: r.DefaultTime,
		SendGap:     r.SendGap,
		RefreshSpec: r.Raw.Notifier.RefreshSpec,
	}
}

func broadcastConfig(r config.Resolved) broadcast.Config {
	b := r.Raw.Broadcast
	return broadcast.Config{
		Workers:    b.Workers,
		RatePerSec: b.RatePerSec,
		RetryMax:   b.RetryMax,
	}
}

func httpConfig(r config.Resolved) httpapi.Config {
	h := r.Raw.HTTP
	return httpapi.Config{
		Enabled:      h.Enabled,
		Addr:         h.Addr,
		Token:        h.Token,
		ReadTimeout:  r.HTTPReadTimeout,
		WriteTimeout: r.HTTPWriteTimeout,
		Pprof:        h.Pprof,
	}
}
