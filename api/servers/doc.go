/*
Package servers runs the geodata HTTP API.

Server mounts every handler passed to New behind the request logging
middleware and adds the operational endpoints:

  - GET /livez: always 200 while the process serves
  - GET /readyz: 200 when ready, 503 while draining
  - GET /drain, GET /undrain: toggle readiness
  - /debug/pprof: when EnablePprof is set

Prometheus metrics are served by a separate metrics.MetricsServer on
MetricsAddr. Shutdown drains for DrainDuration before closing connections.
*/
package servers
