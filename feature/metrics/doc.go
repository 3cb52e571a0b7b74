// Package metrics is the "metrics" plugin. It serves Prometheus metrics
// built from supervisor stats on the address given by metrics_url, using a
// dedicated registry with the Go runtime and process collectors.
package metrics
