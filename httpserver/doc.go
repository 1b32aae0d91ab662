/*
Package httpserver hosts the dashboard API.

The Server composes the handler packages under api/ on one chi router and adds
the operational endpoints shared by every deployment:

  - /health and /api/v1/health: static liveness with the build version
  - /livez, /readyz: probes for a load balancer or systemd watchdog
  - /drain, /undrain: toggle readiness ahead of a restart
  - /debug/pprof: profiling, only with --pprof

Requests are access-logged with httplogger, except websocket upgrades, and the
whole router sits behind rs/cors so the single-page frontend can be served from
another origin. A separate metrics server exposes Prometheus collectors on
MetricsAddr.

Shutdown first marks the server not ready and waits DrainDuration, then stops
accepting connections and waits up to GracefulShutdownDuration for in-flight
requests such as a running `wo site create`.
*/
package httpserver
