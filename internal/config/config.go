package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds configuration for both the proxy and the watcher
type Config struct {
	Pools   PoolsConfig   `yaml:"pools"`   // Blue/green upstream addresses
	Proxy   ProxyConfig   `yaml:"proxy"`   // Router behavior
	Watcher WatcherConfig `yaml:"watcher"` // Log analysis and alerting
}

// PoolsConfig maps the two logical pools to their upstream addresses
type PoolsConfig struct {
	Active string `yaml:"active"` // Pool designated primary at startup: "blue" or "green"
	Blue   string `yaml:"blue"`   // Blue upstream URL
	Green  string `yaml:"green"`  // Green upstream URL
}

// ProxyConfig defines router and failover parameters
type ProxyConfig struct {
	Port               int     `yaml:"port"`                 // Listen port
	AccessLog          string  `yaml:"access_log"`           // JSON access log path
	ConnectTimeoutSec  float64 `yaml:"connect_timeout"`      // Upstream dial timeout (seconds)
	SendTimeoutSec     float64 `yaml:"send_timeout"`         // Request write timeout (seconds)
	ReadTimeoutSec     float64 `yaml:"read_timeout"`         // Response header timeout (seconds)
	RetryBudgetSec     float64 `yaml:"retry_budget"`         // Max elapsed time before a retry is abandoned (seconds)
	RequestBudgetSec   float64 `yaml:"request_budget"`       // Total per-request time budget including retry (seconds)
	MaxRetries         int     `yaml:"max_retries"`          // Retries against the standby per request
	FailureThreshold   int     `yaml:"failure_threshold"`    // Consecutive failures before penalizing an upstream
	PenaltyWindowSec   float64 `yaml:"penalty_window"`       // How long a penalized upstream is skipped (seconds)
	MetricsEnabled     bool    `yaml:"metrics_enabled"`      // Expose /metrics
	ShutdownTimeoutSec int     `yaml:"shutdown_timeout_sec"` // Graceful shutdown budget
}

// WatcherConfig defines log analysis parameters.
// Defaults mirror the operational values this service shipped with:
// 200-request window, 50-request minimum fill, 2% threshold, 300s cooldown.
type WatcherConfig struct {
	AccessLog           string  `yaml:"access_log"`             // Log file to tail
	WebhookURL          string  `yaml:"webhook_url"`            // Slack incoming webhook (required)
	WindowSize          int     `yaml:"window_size"`            // Sliding window capacity (requests)
	MinWindowFill       int     `yaml:"min_window_fill"`        // Samples required before evaluating error rate
	ErrorRateThreshold  float64 `yaml:"error_rate_threshold"`   // Percent
	FailoverCooldownSec int     `yaml:"failover_cooldown_sec"`  // Per-kind alert cooldowns (seconds)
	ErrorCooldownSec    int     `yaml:"error_cooldown_sec"`     //
	RecoveryCooldownSec int     `yaml:"recovery_cooldown_sec"`  //
	PollIntervalMs      int     `yaml:"poll_interval_ms"`       // Tail poll fallback interval
	MetricsPort         int     `yaml:"metrics_port"`           // Watcher /metrics port
}

// ConnectTimeout returns the upstream dial timeout
func (p ProxyConfig) ConnectTimeout() time.Duration { return secs(p.ConnectTimeoutSec) }

// SendTimeout returns the request write timeout
func (p ProxyConfig) SendTimeout() time.Duration { return secs(p.SendTimeoutSec) }

// ReadTimeout returns the response header timeout
func (p ProxyConfig) ReadTimeout() time.Duration { return secs(p.ReadTimeoutSec) }

// RetryBudget returns the elapsed-time limit for attempting a retry
func (p ProxyConfig) RetryBudget() time.Duration { return secs(p.RetryBudgetSec) }

// RequestBudget returns the total per-request time budget
func (p ProxyConfig) RequestBudget() time.Duration { return secs(p.RequestBudgetSec) }

// PenaltyWindow returns the availability penalty duration
func (p ProxyConfig) PenaltyWindow() time.Duration { return secs(p.PenaltyWindowSec) }

// PollInterval returns the tail poll fallback interval
func (w WatcherConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ValidateProxy checks the fields the proxy needs to start
func (c *Config) ValidateProxy() error {
	if c.Pools.Active != "blue" && c.Pools.Active != "green" {
		return fmt.Errorf("active pool must be blue or green, got %q", c.Pools.Active)
	}
	for pool, addr := range map[string]string{"blue": c.Pools.Blue, "green": c.Pools.Green} {
		if addr == "" {
			return fmt.Errorf("missing upstream address for pool %s", pool)
		}
		u, err := url.Parse(addr)
		if err != nil {
			return fmt.Errorf("invalid upstream address for pool %s: %w", pool, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream address for pool %s must include scheme and host: %q", pool, addr)
		}
	}
	if c.Proxy.AccessLog == "" {
		return fmt.Errorf("proxy access log path is required")
	}
	return nil
}

// ValidateWatcher checks the fields the watcher needs to start.
// A missing webhook is a startup error, not a degraded mode.
func (c *Config) ValidateWatcher() error {
	if c.Watcher.WebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is required")
	}
	if c.Watcher.AccessLog == "" {
		return fmt.Errorf("watcher access log path is required")
	}
	if c.Watcher.WindowSize < 1 {
		return fmt.Errorf("window size must be positive, got %d", c.Watcher.WindowSize)
	}
	if c.Watcher.MinWindowFill < 1 || c.Watcher.MinWindowFill > c.Watcher.WindowSize {
		return fmt.Errorf("min window fill must be in [1,%d], got %d",
			c.Watcher.WindowSize, c.Watcher.MinWindowFill)
	}
	if c.Watcher.ErrorRateThreshold < 0 || c.Watcher.ErrorRateThreshold > 100 {
		return fmt.Errorf("error rate threshold must be a percentage, got %v", c.Watcher.ErrorRateThreshold)
	}
	return nil
}
