package config

// Config is the on-disk configuration. Durations are Go duration strings.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Source    SourceConfig    `json:"source"`
	Cache     CacheConfig     `json:"cache"`
	Notifier  NotifierConfig  `json:"notifier"`
	Broadcast BroadcastConfig `json:"broadcast"`
	HTTP      HTTPConfig      `json:"http"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat that receives log entries from the Telegram sink.
	GroupLog       int64  `json:"group_log,omitempty"`
	PollTimeout    string `json:"poll_timeout,omitempty"`
	HandlerTimeout string `json:"handler_timeout,omitempty"`
	APIURL         string `json:"api_url,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the user store.
//
//	"storage": { "driver": "sqlite", "path": "./data/users.db" }
//
// An empty driver keeps users in memory only.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SourceConfig describes the upstream timetable site.
type SourceConfig struct {
	BaseURL    string  `json:"base_url,omitempty"`
	UserAgent  string  `json:"user_agent,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
	Retries    int     `json:"retries,omitempty"`
	RetryDelay string  `json:"retry_delay,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	// Departments are the group index pages listed by the directory.
	Departments []int  `json:"departments,omitempty"`
	GroupsTTL   string `json:"groups_ttl,omitempty"`
	WeeksTTL    string `json:"weeks_ttl,omitempty"`
}

type CacheConfig struct {
	TTL          string `json:"ttl,omitempty"`
	HardRefresh  string `json:"hard_refresh,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	// RefreshWorkers bounds RefreshAll parallelism.
	RefreshWorkers int `json:"refresh_workers,omitempty"`
}

type NotifierConfig struct {
	Enabled     bool   `json:"enabled"`
	Timezone    string `json:"timezone,omitempty"`
	DefaultTime string `json:"default_time,omitempty"`
	SendGap     string `json:"send_gap,omitempty"`
	// RefreshSpec is the cron spec of the nightly cache refresh. Empty disables it.
	RefreshSpec string `json:"refresh_spec,omitempty"`
}

// BroadcastConfig tunes owner announcements sent with /broadcast.
type BroadcastConfig struct {
	Enabled    bool `json:"enabled"`
	Workers    int  `json:"workers,omitempty"`
	RatePerSec int  `json:"rate_per_sec,omitempty"`
	RetryMax   int  `json:"retry_max,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Token guards mutating endpoints when set. Never logged.
	Token        string `json:"token,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	// Pprof exposes /debug/pprof/ on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}
