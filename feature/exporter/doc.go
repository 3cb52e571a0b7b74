// Package exporter is a standalone Prometheus exporter for a remote control
// app. It polls /stats and /gc-stats and republishes them as puma_* gauges.
package exporter
