package config

import (
	"time"
)

// Config holds the raw key/value pairs of a loaded configuration file.
// Accessors never fail: a missing key or a value of the wrong type
// yields the caller's fallback, so a partial preprocess.yaml still
// resolves to a usable Settings.
type Config struct {
	data map[string]any
}

// New wraps an already-decoded configuration map. A nil map behaves
// like an empty file.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// String returns the value under key, or fallback when the key is
// absent or holds a non-string.
func (c Config) String(key, fallback string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return fallback
}

// Int returns the value under key, or fallback when the key is absent
// or not an integral number. YAML decodes whole numbers as int while
// JSON decodes every number as float64, so floats are accepted when
// they carry no fractional part.
func (c Config) Int(key string, fallback int) int {
	switch v := c.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return fallback
}

// Duration returns the value under key, or fallback when the key is
// absent or unparseable. Strings go through time.ParseDuration, and
// bare numbers are taken as seconds, so poll_interval: 10 and
// poll_interval: "10s" mean the same thing.
func (c Config) Duration(key string, fallback time.Duration) time.Duration {
	switch v := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case time.Duration:
		return v
	}
	return fallback
}
