package metrics

import (
	"context"
	"strconv"
	"time"

	"prefork/core/supervisor"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "puma"

// memoryTimeout bounds the RSS lookups done during one scrape.
const memoryTimeout = 2 * time.Second

// Collector turns supervisor stats into gauges on every scrape.
type Collector struct {
	ctl supervisor.Controller
	mem MemoryReader

	workers       *prometheus.Desc
	bootedWorkers *prometheus.Desc
	oldWorkers    *prometheus.Desc
	phase         *prometheus.Desc
	backlog       *prometheus.Desc
	running       *prometheus.Desc
	poolCapacity  *prometheus.Desc
	maxThreads    *prometheus.Desc
	requests      *prometheus.Desc

	workerBooted       *prometheus.Desc
	workerPhase        *prometheus.Desc
	workerBacklog      *prometheus.Desc
	workerRunning      *prometheus.Desc
	workerPoolCapacity *prometheus.Desc
	workerMaxThreads   *prometheus.Desc
	workerRequests     *prometheus.Desc
	workerLastCheckin  *prometheus.Desc
	workerMemory       *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector. mem may be nil to skip memory gauges.
func NewCollector(ctl supervisor.Controller, mem MemoryReader) *Collector {
	gauge := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		ctl: ctl,
		mem: mem,

		workers:       gauge("workers", "Number of configured workers"),
		bootedWorkers: gauge("booted_workers", "Number of booted workers"),
		oldWorkers:    gauge("old_workers", "Number of workers running a previous phase"),
		phase:         gauge("phase", "Current restart phase"),
		backlog:       gauge("request_backlog", "Number of requests waiting to be processed by a thread"),
		running:       gauge("thread_count", "Number of threads currently running"),
		poolCapacity:  gauge("pool_capacity", "Number of requests that can be accepted right now"),
		maxThreads:    gauge("max_threads", "Maximum number of threads"),
		requests:      gauge("requests_count", "Requests served by the current workers"),

		workerBooted:       gauge("worker_booted", "Whether the worker has booted", "index"),
		workerPhase:        gauge("worker_phase", "Phase the worker was spawned in", "index"),
		workerBacklog:      gauge("worker_request_backlog", "Requests waiting in the worker", "index"),
		workerRunning:      gauge("worker_thread_count", "Threads running in the worker", "index"),
		workerPoolCapacity: gauge("worker_pool_capacity", "Pool capacity of the worker", "index"),
		workerMaxThreads:   gauge("worker_max_threads", "Maximum threads of the worker", "index"),
		workerRequests:     gauge("worker_requests_count", "Requests served by the worker", "index"),
		workerLastCheckin:  gauge("worker_last_checkin_timestamp_seconds", "Unix time of the last check-in", "index"),
		workerMemory:       gauge("worker_resident_memory_bytes", "Resident memory of the worker process", "index"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.workers, c.bootedWorkers, c.oldWorkers, c.phase,
		c.backlog, c.running, c.poolCapacity, c.maxThreads, c.requests,
		c.workerBooted, c.workerPhase, c.workerBacklog, c.workerRunning,
		c.workerPoolCapacity, c.workerMaxThreads, c.workerRequests,
		c.workerLastCheckin, c.workerMemory,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.ctl.Stats()
	set := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	totals := stats.Totals()
	set(c.backlog, float64(totals.Backlog))
	set(c.running, float64(totals.Running))
	set(c.poolCapacity, float64(totals.PoolCapacity))
	set(c.maxThreads, float64(totals.MaxThreads))
	set(c.requests, float64(totals.RequestsCount))

	cluster := stats.ClusterStats
	if cluster == nil {
		set(c.workers, 0)
		return
	}

	set(c.workers, float64(cluster.Workers))
	set(c.bootedWorkers, float64(cluster.BootedWorkers))
	set(c.oldWorkers, float64(cluster.OldWorkers))
	set(c.phase, float64(cluster.Phase))

	ctx, cancel := context.WithTimeout(context.Background(), memoryTimeout)
	defer cancel()

	for _, w := range cluster.WorkerStatus {
		idx := strconv.Itoa(w.Index)
		booted := 0.0
		if w.Booted {
			booted = 1
		}
		set(c.workerBooted, booted, idx)
		set(c.workerPhase, float64(w.Phase), idx)
		set(c.workerBacklog, float64(w.LastStatus.Backlog), idx)
		set(c.workerRunning, float64(w.LastStatus.Running), idx)
		set(c.workerPoolCapacity, float64(w.LastStatus.PoolCapacity), idx)
		set(c.workerMaxThreads, float64(w.LastStatus.MaxThreads), idx)
		set(c.workerRequests, float64(w.LastStatus.RequestsCount), idx)
		if !w.LastCheckin.IsZero() {
			set(c.workerLastCheckin, float64(w.LastCheckin.Unix()), idx)
		}

		if c.mem == nil || w.Pid <= 0 {
			continue
		}
		if rss, err := c.mem.ResidentMemory(ctx, w.Pid); err == nil {
			set(c.workerMemory, float64(rss), idx)
		}
	}
}
