package analyzer

import "time"

// Kind identifies one alert family, each with its own cooldown
type Kind string

const (
	KindFailover  Kind = "failover"
	KindErrorRate Kind = "high_error_rate"
	KindRecovery  Kind = "recovery"
)

// Alert is one notification-worthy event decided by the analyzer
type Alert struct {
	Kind Kind
	Time time.Time

	// Failover and recovery
	PreviousPool string
	CurrentPool  string

	// Error rate and recovery
	Errors      int
	WindowSize  int
	RatePercent float64
}
