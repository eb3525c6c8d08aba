package config

import (
	"fmt"
	"slices"
	"strings"
)

// SummarizeChange describes which sections differ between two configs.
// Secrets are reported as changed without their values.
func SummarizeChange(prev, next *Config) string {
	if prev == nil {
		return "initial"
	}
	if next == nil {
		return "removed"
	}
	var parts []string
	add := func(format string, args ...any) { parts = append(parts, fmt.Sprintf(format, args...)) }

	if prev.Telegram.Token != next.Telegram.Token {
		add("telegram.token changed")
	}
	if !slices.Equal(prev.Telegram.OwnerUserIDs, next.Telegram.OwnerUserIDs) {
		add("telegram.owner_user_ids %d->%d", len(prev.Telegram.OwnerUserIDs), len(next.Telegram.OwnerUserIDs))
	}
	if prev.Logging.Level != next.Logging.Level {
		add("logging.level %s->%s", orDash(prev.Logging.Level), orDash(next.Logging.Level))
	}
	if prev.Logging.File != next.Logging.File || prev.Logging.Telegram != next.Logging.Telegram || prev.Logging.Console != next.Logging.Console {
		add("logging sinks")
	}
	if prev.Storage != next.Storage {
		add("storage (restart required)")
	}
	if prev.Source.BaseURL != next.Source.BaseURL || prev.Source.UserAgent != next.Source.UserAgent ||
		prev.Source.Timeout != next.Source.Timeout || prev.Source.Retries != next.Source.Retries ||
		prev.Source.RatePerSec != next.Source.RatePerSec || !slices.Equal(prev.Source.Departments, next.Source.Departments) {
		add("source")
	}
	if prev.Cache != next.Cache {
		add("cache")
	}
	if prev.Notifier != next.Notifier {
		add("notifier")
	}
	if prev.Broadcast.Enabled != next.Broadcast.Enabled || prev.Broadcast.Workers != next.Broadcast.Workers {
		add("broadcast (restart required)")
	} else if prev.Broadcast != next.Broadcast {
		add("broadcast")
	}
	if prev.HTTP.Enabled != next.HTTP.Enabled || prev.HTTP.Addr != next.HTTP.Addr {
		add("http (restart required)")
	}
	if prev.HTTP.Token != next.HTTP.Token {
		add("http.token changed")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
