/*
Package server runs the HTTP API of the signing service.

A Server mounts the routes of one or more handlers behind the access log
middleware and adds the operational endpoints:

  - /livez - always 200 while the process serves requests
  - /readyz - 200 while ready, 503 while drained
  - /drain and /undrain - flip readiness for load balancers
  - /debug/* - pprof, when enabled in the configuration

Prometheus metrics are served by a separate listener on MetricsAddr. Callers
register application collectors through Server.Metrics before calling
RunInBackground.

Shutdown stops the API listener first, waiting up to GracefulShutdownDuration
for open requests, and then stops the metrics listener.
*/
package server
