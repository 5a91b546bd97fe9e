package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: built-in defaults, an
// optional YAML file, then environment variables (highest precedence).
// A .env file in the working directory is folded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	config := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(config)

	return config, nil
}

// defaults returns the baseline configuration
func defaults() *Config {
	return &Config{
		Pools: PoolsConfig{
			Active: "blue",
			Blue:   "http://app-blue:8000",
			Green:  "http://app-green:8000",
		},
		Proxy: ProxyConfig{
			Port:               8080,
			AccessLog:          "/shared/logs/access.log",
			ConnectTimeoutSec:  1,
			SendTimeoutSec:     2,
			ReadTimeoutSec:     2,
			RetryBudgetSec:     5,
			RequestBudgetSec:   6,
			MaxRetries:         1,
			FailureThreshold:   1,
			PenaltyWindowSec:   2,
			MetricsEnabled:     true,
			ShutdownTimeoutSec: 30,
		},
		Watcher: WatcherConfig{
			AccessLog:           "/shared/logs/access.log",
			WindowSize:          200,
			MinWindowFill:       50,
			ErrorRateThreshold:  2,
			FailoverCooldownSec: 300,
			ErrorCooldownSec:    300,
			RecoveryCooldownSec: 300,
			PollIntervalMs:      100,
			MetricsPort:         9100,
		},
	}
}

// applyEnv overlays recognized environment variables onto the config
func applyEnv(c *Config) {
	envStr("ACTIVE_POOL", &c.Pools.Active)
	envStr("BLUE_UPSTREAM", &c.Pools.Blue)
	envStr("GREEN_UPSTREAM", &c.Pools.Green)

	envInt("PROXY_PORT", &c.Proxy.Port)
	envStr("ACCESS_LOG", &c.Proxy.AccessLog)
	envFloat("CONNECT_TIMEOUT_SEC", &c.Proxy.ConnectTimeoutSec)
	envFloat("SEND_TIMEOUT_SEC", &c.Proxy.SendTimeoutSec)
	envFloat("READ_TIMEOUT_SEC", &c.Proxy.ReadTimeoutSec)
	envFloat("RETRY_BUDGET_SEC", &c.Proxy.RetryBudgetSec)
	envFloat("REQUEST_BUDGET_SEC", &c.Proxy.RequestBudgetSec)
	envInt("MAX_RETRIES", &c.Proxy.MaxRetries)
	envInt("FAILURE_THRESHOLD", &c.Proxy.FailureThreshold)
	envFloat("PENALTY_WINDOW_SEC", &c.Proxy.PenaltyWindowSec)

	envStr("ACCESS_LOG", &c.Watcher.AccessLog)
	envStr("SLACK_WEBHOOK_URL", &c.Watcher.WebhookURL)
	envInt("WINDOW_SIZE", &c.Watcher.WindowSize)
	envInt("MIN_WINDOW_FILL", &c.Watcher.MinWindowFill)
	envFloat("ERROR_RATE_THRESHOLD", &c.Watcher.ErrorRateThreshold)

	// ALERT_COOLDOWN_SEC sets all three kinds; per-kind variables override it
	if v, ok := lookupInt("ALERT_COOLDOWN_SEC"); ok {
		c.Watcher.FailoverCooldownSec = v
		c.Watcher.ErrorCooldownSec = v
		c.Watcher.RecoveryCooldownSec = v
	}
	envInt("FAILOVER_COOLDOWN_SEC", &c.Watcher.FailoverCooldownSec)
	envInt("ERROR_COOLDOWN_SEC", &c.Watcher.ErrorCooldownSec)
	envInt("RECOVERY_COOLDOWN_SEC", &c.Watcher.RecoveryCooldownSec)
	envInt("TAIL_POLL_INTERVAL_MS", &c.Watcher.PollIntervalMs)
	envInt("WATCHER_METRICS_PORT", &c.Watcher.MetricsPort)
}

func envStr(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := lookupInt(name); ok {
		*dst = v
	}
}

func lookupInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
