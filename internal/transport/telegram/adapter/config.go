package adapter

import "time"

// Config holds the Telegram connection settings.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// APIURL overrides the Bot API endpoint; empty means the public one.
	APIURL string
}

func (c Config) apiURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return "https://api.telegram.org"
}
