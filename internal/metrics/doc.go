// Package metrics exposes relay counters and gauges in Prometheus format.
package metrics
