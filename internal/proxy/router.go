// Package proxy implements the blue/green router: all traffic goes to the
// active pool's upstream, with one retry against the standby on retryable
// failure. Every request produces exactly one access log record; the
// watcher consumes that record stream, never the router directly.
package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Nash0810/failsafe/internal/accesslog"
	"github.com/Nash0810/failsafe/internal/config"
	"github.com/Nash0810/failsafe/internal/logging"
	"github.com/Nash0810/failsafe/internal/metrics"
	"github.com/Nash0810/failsafe/internal/upstream"
)

// Identity headers set by the backends and forwarded verbatim
const (
	HeaderPool      = "X-App-Pool"
	HeaderRelease   = "X-Release-Id"
	HeaderRequestID = "X-Request-ID"
)

// hopHeaders are connection-management headers that must not be forwarded
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Router proxies client requests to the active pool with standby failover
type Router struct {
	pair      *upstream.Pair
	transport http.RoundTripper
	accessLog *accesslog.Writer
	collector *metrics.ProxyCollector
	logger    *logging.Logger

	maxRetries     int
	retryBudget    time.Duration
	requestBudget  time.Duration
	attemptTimeout time.Duration
}

// NewRouter creates the router with a transport tuned for fast abandonment
// of a failing upstream: tight dial and response-header timeouts keep the
// client-visible latency bounded even with one retry.
func NewRouter(pair *upstream.Pair, cfg config.ProxyConfig, logWriter *accesslog.Writer,
	collector *metrics.ProxyCollector, logger *logging.Logger) *Router {

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout(),
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout(),
		TLSHandshakeTimeout:   cfg.ConnectTimeout(),
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Router{
		pair:           pair,
		transport:      transport,
		accessLog:      logWriter,
		collector:      collector,
		logger:         logger,
		maxRetries:     cfg.MaxRetries,
		retryBudget:    cfg.RetryBudget(),
		requestBudget:  cfg.RequestBudget(),
		attemptTimeout: cfg.ConnectTimeout() + cfg.SendTimeout() + cfg.ReadTimeout(),
	}
}

// attemptResult summarizes one upstream attempt for logging
type attemptResult struct {
	target   *upstream.Target
	status   int // 0 on transport error
	duration time.Duration
	cancel   context.CancelFunc
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), rt.requestBudget)
	defer cancel()

	// Buffer the body so a retry can resend the identical request
	var bodyBytes []byte
	if r.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			rt.logger.Error("failed_to_buffer_body",
				"request_id", requestID,
				"error", err.Error())
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
	}

	first := rt.selectFirst(start)
	maxAttempts := 1 + rt.maxRetries
	var last attemptResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		target := first
		if attempt > 1 {
			target = rt.pair.Get(first.Pool.Other())
		}

		result, resp := rt.attempt(ctx, r, target, requestID, bodyBytes)
		last = result

		if resp != nil {
			// Upstream answered with a non-failure status; pass it through
			rt.finish(w, r, resp, result, requestID, start)
			return
		}

		target.RecordFailure(time.Now())
		rt.logger.Warn("upstream_attempt_failed",
			"request_id", requestID,
			"pool", string(target.Pool),
			"upstream", target.Addr(),
			"attempt", attempt,
			"status", result.status)

		if attempt < maxAttempts {
			if elapsed := time.Since(start); elapsed >= rt.retryBudget {
				rt.logger.Warn("retry_budget_exhausted",
					"request_id", requestID,
					"elapsed_ms", elapsed.Milliseconds())
				break
			}
			reason := "transport_error"
			if result.status != 0 {
				reason = "server_error"
			}
			rt.collector.RetriesTotal.WithLabelValues(reason).Inc()
		}
	}

	// Both upstreams failed: generic server error, record with no pool
	rt.collector.BothPoolsFailed.Inc()
	rt.collector.RequestsTotal.WithLabelValues(
		poolLabel(""), r.Method, strconv.Itoa(http.StatusBadGateway)).Inc()
	http.Error(w, "Bad Gateway", http.StatusBadGateway)
	rt.writeRecord(r, http.StatusBadGateway, "", "", last, start)

	rt.logger.Error("all_upstreams_failed",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path)
}

// selectFirst picks the first attempt's target: the active pool unless it
// is inside its penalty window and the standby is not
func (rt *Router) selectFirst(now time.Time) *upstream.Target {
	active := rt.pair.Active()
	if active.Available(now) {
		return active
	}
	standby := rt.pair.Standby()
	if standby.Available(now) {
		rt.logger.Warn("active_pool_penalized_routing_to_standby",
			"active", string(active.Pool),
			"standby", string(standby.Pool))
		return standby
	}
	return active
}

// attempt performs one upstream round trip. Returns a non-nil response
// only when the outcome should be surfaced to the client; retryable
// failures return resp == nil and the response (if any) is discarded.
func (rt *Router) attempt(ctx context.Context, r *http.Request, target *upstream.Target,
	requestID string, bodyBytes []byte) (attemptResult, *http.Response) {

	attemptCtx, cancel := context.WithTimeout(ctx, rt.attemptTimeout)

	outReq := r.Clone(attemptCtx)
	outReq.URL.Scheme = target.URL.Scheme
	outReq.URL.Host = target.URL.Host
	outReq.RequestURI = ""
	outReq.Header.Set(HeaderRequestID, requestID)
	for _, h := range hopHeaders {
		outReq.Header.Del(h)
	}
	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		outReq.Header.Set("X-Forwarded-For", clientIP)
	}
	if bodyBytes != nil {
		outReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		outReq.ContentLength = int64(len(bodyBytes))
	}

	attemptStart := time.Now()
	resp, err := rt.transport.RoundTrip(outReq)
	duration := time.Since(attemptStart)

	result := attemptResult{target: target, duration: duration, cancel: cancel}

	if err != nil {
		cancel()
		result.cancel = nil
		return result, nil
	}

	result.status = resp.StatusCode
	if isRetryableStatus(resp.StatusCode) {
		// Discard the failed attempt entirely; it is never merged with
		// the retry's response
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()
		result.cancel = nil
		return result, nil
	}

	// cancel stays live while the body streams; finish releases it
	return result, resp
}

// finish streams a successful (or non-retryable) upstream response to the
// client and writes the access log record
func (rt *Router) finish(w http.ResponseWriter, r *http.Request, resp *http.Response,
	result attemptResult, requestID string, start time.Time) {

	defer resp.Body.Close()
	if result.cancel != nil {
		defer result.cancel()
	}

	result.target.RecordSuccess()

	pool := resp.Header.Get(HeaderPool)
	release := resp.Header.Get(HeaderRelease)

	header := w.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)

	rt.writeRecord(r, resp.StatusCode, pool, release, result, start)

	rt.collector.RequestsTotal.WithLabelValues(
		poolLabel(pool), r.Method, strconv.Itoa(resp.StatusCode)).Inc()
	rt.collector.RequestDuration.WithLabelValues(poolLabel(pool)).
		Observe(time.Since(start).Seconds())

	rt.logger.Info("request_completed",
		"request_id", requestID,
		"pool", pool,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
}

// writeRecord appends the single per-request access log record
func (rt *Router) writeRecord(r *http.Request, status int, pool, release string,
	result attemptResult, start time.Time) {

	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}

	upstreamStatus := ""
	upstreamAddr := ""
	var upstreamTime float64
	if result.target != nil {
		upstreamAddr = result.target.Addr()
		upstreamTime = result.duration.Seconds()
		if result.status != 0 {
			upstreamStatus = strconv.Itoa(result.status)
		}
	}

	rec := accesslog.Record{
		Timestamp:            start.UTC(),
		ClientIP:             clientIP,
		Method:               r.Method,
		URI:                  r.URL.RequestURI(),
		Status:               status,
		Pool:                 pool,
		Release:              release,
		UpstreamStatus:       upstreamStatus,
		UpstreamAddr:         upstreamAddr,
		RequestTime:          time.Since(start).Seconds(),
		UpstreamResponseTime: upstreamTime,
	}

	if err := rt.accessLog.Write(rec); err != nil {
		rt.logger.Error("access_log_write_failed", "error", err.Error())
	}
}

// isRetryableStatus reports whether a status code counts as an upstream
// failure for failover purposes
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func poolLabel(pool string) string {
	if pool == "" {
		return "none"
	}
	return pool
}
