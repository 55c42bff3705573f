package http

import (
	"fmt"
	"net/http"
	"strings"
)

// handleMetrics exposes the middleware counters as plain text, one
// "name value" pair per line.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	var b strings.Builder
	write := func(name string, value int64) {
		fmt.Fprintf(&b, "%s %d\n", name, value)
	}

	write("http_requests_total", traceMetrics.TotalRequests)
	write("http_server_errors_total", traceMetrics.ServerErrors)
	write("http_response_time_avg_microseconds", traceMetrics.AverageResponseTime)
	write("rate_limit_hits_total", limitMetrics.TotalHits)
	write("rate_limit_active_clients", limitMetrics.ClientCount)
	write("security_suspicious_requests_total", securityMetrics.SuspiciousRequests)
	write("security_invalid_ip_attempts_total", securityMetrics.InvalidIPAttempts)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
