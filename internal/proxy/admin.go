package proxy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Nash0810/failsafe/internal/logging"
	"github.com/Nash0810/failsafe/internal/metrics"
	"github.com/Nash0810/failsafe/internal/upstream"
)

// SwitchHandler exposes the single runtime mutation point for the
// active-pool designation: POST /admin/switch?pool=blue|green
func SwitchHandler(pair *upstream.Pair, collector *metrics.ProxyCollector,
	logger *logging.Logger) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		pool := upstream.Pool(r.URL.Query().Get("pool"))
		previous, err := pair.Switch(pool)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if previous != pool {
			collector.PoolSwitchesTotal.Inc()
		}
		logger.Info("active_pool_switched",
			"previous", string(previous),
			"active", string(pool))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"previous": string(previous),
			"active":   string(pool),
		})
	}
}

// HealthHandler reports the proxy's own view of the pair
func HealthHandler(pair *upstream.Pair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		active := pair.Active()
		standby := pair.Standby()

		status := http.StatusOK
		if !active.Available(now) && !standby.Available(now) {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"active_pool":       string(pair.ActivePool()),
			"active_available":  active.Available(now),
			"standby_available": standby.Available(now),
		})
	}
}
