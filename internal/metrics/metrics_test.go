// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

func TestBMSMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBMSMetrics(reg, "C8:47:8C:F7:AD:B4")

	m.ObserveSample(jikong.Sample{
		Voltage:        53.123,
		Current:        -12.5,
		Temperatures:   [2]float64{21.5, -3.5},
		MOSTemperature: 30.1,
		Cycles:         42,
	})
	m.ObserveCells([]float64{3.3, 3.301})
	m.SetConnected(true)

	assert.Equal(t, 53.123, testutil.ToFloat64(m.Voltage))
	assert.Equal(t, -12.5, testutil.ToFloat64(m.Current))
	assert.Equal(t, 30.1, testutil.ToFloat64(m.Temperature.WithLabelValues("mos")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Cycles))
	assert.Equal(t, 3.301, testutil.ToFloat64(m.CellVoltage.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
}

func TestBMSMetrics_Statistics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBMSMetrics(reg, "C8:47:8C:F7:AD:B4")

	stats := jikong.NewStatistics()
	stats.FramesByType[jikong.TagCellInfo] = 7
	stats.ChecksumErrors = 2
	m.ObserveStatistics(*stats)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.Frames.WithLabelValues("CELL_INFO")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChecksumErrors))
}

func TestHandler_Exposition(t *testing.T) {
	reg := NewRegistry()
	m := NewBMSMetrics(reg, "C8:47:8C:F7:AD:B4")
	m.Voltage.Set(53.123)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `jkbms_voltage_volts{address="C8:47:8C:F7:AD:B4"} 53.123`)
	assert.Contains(t, string(body), "go_goroutines")
}
