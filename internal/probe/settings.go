package probe

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultRetryCount   = 1
	DefaultRetryDelayMS = 3000
)

// Environment keys read by ResolveSettings.
const (
	EnvRetryCount = "RETRY_COUNT"
	EnvRetryDelay = "RETRY_DELAY"
)

// ResolveSettings reads the retry tuning from env, falling back to defaults for
// anything missing or not integer-like. Negative values are kept as given.
func ResolveSettings(env Environment) Settings {
	return Settings{
		MaxRetries:   intOr(env[EnvRetryCount], DefaultRetryCount),
		RetryDelayMS: intOr(env[EnvRetryDelay], DefaultRetryDelayMS),
	}
}

// Delay is the pause between attempts.
func (s Settings) Delay() time.Duration {
	if s.RetryDelayMS <= 0 {
		return 0
	}
	return time.Duration(s.RetryDelayMS) * time.Millisecond
}

// Attempts is the total attempt budget, never below one.
func (s Settings) Attempts() int {
	if s.MaxRetries < 0 {
		return 1
	}
	return s.MaxRetries + 1
}

func intOr(v any, def int) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		if n, ok := leadingInt(x); ok {
			return n
		}
	}
	return def
}

// leadingInt parses the integer prefix of s: "42", " -3", "10ms" all parse,
// "abc" and "" do not.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
