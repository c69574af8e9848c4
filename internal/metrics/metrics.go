// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package metrics exposes BMS telemetry and engine statistics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the Prometheus HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BMSMetrics holds gauges for one device
type BMSMetrics struct {
	Voltage        prometheus.Gauge
	Current        prometheus.Gauge
	Charge         prometheus.Gauge
	ChargeFull     prometheus.Gauge
	Temperature    *prometheus.GaugeVec // labels: sensor
	BalanceCurrent prometheus.Gauge
	Cycles         prometheus.Gauge
	CellVoltage    *prometheus.GaugeVec // labels: cell
	Connected      prometheus.Gauge

	Frames             *prometheus.GaugeVec // labels: type
	ChecksumErrors     prometheus.Gauge
	Timeouts           prometheus.Gauge
	CapacityMismatches prometheus.Gauge
}

// NewBMSMetrics registers and returns the device gauges. Every metric carries
// a constant address label.
func NewBMSMetrics(reg prometheus.Registerer, address string) *BMSMetrics {
	labels := prometheus.Labels{"address": address}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "jkbms", Name: name, Help: help, ConstLabels: labels})
	}
	gaugeVec := func(name, help, label string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "jkbms", Name: name, Help: help, ConstLabels: labels}, []string{label})
	}

	m := &BMSMetrics{
		Voltage:            gauge("voltage_volts", "Pack voltage."),
		Current:            gauge("current_amperes", "Pack current, negative while discharging."),
		Charge:             gauge("charge_ampere_hours", "Remaining charge."),
		ChargeFull:         gauge("charge_full_ampere_hours", "Full charge capacity."),
		Temperature:        gaugeVec("temperature_celsius", "Temperature by sensor.", "sensor"),
		BalanceCurrent:     gauge("balance_current_amperes", "Balancer current."),
		Cycles:             gauge("cycles", "Charge cycle count."),
		CellVoltage:        gaugeVec("cell_voltage_volts", "Voltage by cell.", "cell"),
		Connected:          gauge("connected", "1 while a session is established."),
		Frames:             gaugeVec("frames", "Frames received in the current session by type.", "type"),
		ChecksumErrors:     gauge("checksum_errors", "Frames dropped for checksum mismatch in the current session."),
		Timeouts:           gauge("response_timeouts", "Response timeouts in the current session."),
		CapacityMismatches: gauge("capacity_mismatches", "Telemetry frames failing the capacity check in the current session."),
	}
	reg.MustRegister(m.Voltage, m.Current, m.Charge, m.ChargeFull, m.Temperature, m.BalanceCurrent,
		m.Cycles, m.CellVoltage, m.Connected, m.Frames, m.ChecksumErrors, m.Timeouts, m.CapacityMismatches)
	return m
}

// ObserveSample sets the telemetry gauges
func (m *BMSMetrics) ObserveSample(s jikong.Sample) {
	m.Voltage.Set(s.Voltage)
	m.Current.Set(s.Current)
	m.Charge.Set(s.Charge)
	m.ChargeFull.Set(s.ChargeFull)
	m.Temperature.WithLabelValues("0").Set(s.Temperatures[0])
	m.Temperature.WithLabelValues("1").Set(s.Temperatures[1])
	m.Temperature.WithLabelValues("mos").Set(s.MOSTemperature)
	m.BalanceCurrent.Set(s.BalanceCurrent)
	m.Cycles.Set(float64(s.Cycles))
}

// ObserveCells sets the per-cell voltage gauges, numbered from 1
func (m *BMSMetrics) ObserveCells(voltages []float64) {
	for i, v := range voltages {
		m.CellVoltage.WithLabelValues(strconv.Itoa(i + 1)).Set(v)
	}
}

// ObserveStatistics mirrors the engine statistics of the current session
func (m *BMSMetrics) ObserveStatistics(s jikong.Statistics) {
	for tag, n := range s.FramesByType {
		m.Frames.WithLabelValues(jikong.FormatMessageType(tag)).Set(float64(n))
	}
	m.ChecksumErrors.Set(float64(s.ChecksumErrors))
	m.Timeouts.Set(float64(s.Timeouts))
	m.CapacityMismatches.Set(float64(s.CapacityMismatches))
}

// SetConnected records the connection state
func (m *BMSMetrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
