// Package httpserver serves the pjctl operational endpoints.
//
// Routes:
//
//	GET /metrics   Prometheus exposition
//	GET /healthz   liveness
//	GET /readyz    readiness (page store reachable)
//	GET /loglevel  current log level
//	PUT /loglevel  change it, e.g. ?level=debug
//
// Every request passes through request ID, panic recovery, access log and
// an optional global rate limit.
package httpserver
