// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the gauges describing one read run, for the
// node_exporter textfile collector.
type Metrics struct {
	Bytes     prometheus.Gauge
	IOs       prometheus.Gauge
	Elapsed   prometheus.Gauge
	IOPS      prometheus.Gauge
	Bandwidth prometheus.Gauge
	Status    *prometheus.GaugeVec
}

// NewMetrics creates the gauges for a run over zone zoneNo of device
// dev, and registers them with reg.
func NewMetrics(reg prometheus.Registerer, dev string, zoneNo int) *Metrics {
	labels := prometheus.Labels{
		"device": dev,
		"zone":   strconv.Itoa(zoneNo),
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "zbd",
			Subsystem:   "read_zone",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &Metrics{
		Bytes:     gauge("bytes", "Bytes read from the zone."),
		IOs:       gauge("ios", "Read I/Os completed."),
		Elapsed:   gauge("elapsed_seconds", "Wall-clock duration of the read loop."),
		IOPS:      gauge("iops", "Read I/Os per second."),
		Bandwidth: gauge("bandwidth_bytes_per_second", "Read throughput."),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "zbd",
			Subsystem:   "read_zone",
			Name:        "status",
			Help:        "1 for the status the run ended with, 0 for the others.",
			ConstLabels: labels,
		}, []string{"status"}),
	}
	reg.MustRegister(m.Bytes, m.IOs, m.Elapsed, m.IOPS, m.Bandwidth, m.Status)
	return m
}

// Observe sets the gauges from res.  The rate gauges are left at 0 if
// no measurable time elapsed.
func (m *Metrics) Observe(res Result) {
	m.Bytes.Set(float64(res.Bytes))
	m.IOs.Set(float64(res.IOs))
	m.Elapsed.Set(res.Elapsed.Seconds())
	if iops, ok := res.IOPS(); ok {
		m.IOPS.Set(float64(iops))
	}
	if brate, ok := res.ByteRate(); ok {
		m.Bandwidth.Set(float64(brate))
	}
	for _, status := range []Status{StatusDone, StatusAborted, StatusFailed} {
		val := 0.0
		if status == res.Status {
			val = 1
		}
		m.Status.WithLabelValues(status.String()).Set(val)
	}
}

// WriteMetricsFile writes res to filename in the Prometheus text
// format.
func WriteMetricsFile(filename, dev string, zoneNo int, res Result) error {
	reg := prometheus.NewRegistry()
	NewMetrics(reg, dev, zoneNo).Observe(res)
	return prometheus.WriteToTextfile(filename, reg)
}
