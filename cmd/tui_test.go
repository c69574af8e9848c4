// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{59 * time.Second, "59 seconds"},
		{61 * time.Second, "1 minute and 1 second"},
		{2 * time.Hour, "2 hours"},
		{90061 * time.Second, "1 day, 1 hour, 1 minute, and 1 second"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUptime(tt.in))
		})
	}
}

func TestStateOfCharge(t *testing.T) {
	assert.InDelta(t, 0.8, stateOfCharge(jikong.Sample{Charge: 80, ChargeFull: 100}), 1e-9)
	assert.Equal(t, 0.0, stateOfCharge(jikong.Sample{Charge: 80}))
	assert.Equal(t, 1.0, stateOfCharge(jikong.Sample{Charge: 120, ChargeFull: 100}))
	assert.Equal(t, 0.0, stateOfCharge(jikong.Sample{Charge: -1, ChargeFull: 100}))
}

func update(t *testing.T, m dashboardModel, msg tea.Msg) dashboardModel {
	t.Helper()
	next, _ := m.Update(msg)
	dm, ok := next.(dashboardModel)
	require.True(t, ok)
	return dm
}

func TestDashboard_Connecting(t *testing.T) {
	m := initialDashboardModel("Bluetooth: "+testAddress, nil)

	view := m.View()
	assert.Contains(t, view, "JKBMS - DASHBOARD")
	assert.Contains(t, view, "Bluetooth: "+testAddress)
	assert.Contains(t, view, "Connecting...")
	assert.Contains(t, view, "(no events yet)")
}

func TestDashboard_SampleFlow(t *testing.T) {
	m := initialDashboardModel("test", nil)

	m = update(t, m, connectedMsg{identity: jikong.DeviceIdentity{Cells: 16, Capacity: 100}})
	require.NotNil(t, m.identity)
	require.Len(t, m.eventLog, 1)
	assert.False(t, m.eventLog[0].isError)

	m = update(t, m, sampleMsg{sample: testSample(time.Now()), cells: []float64{3.300, 3.310}})
	require.NotNil(t, m.lastSample)
	assert.Len(t, m.cells, 2)

	view := m.View()
	assert.Contains(t, view, "16 cells, 100.000 Ah")
	assert.Contains(t, view, "53.123 V")
	assert.Contains(t, view, "80.250/100.000 Ah")
	assert.Contains(t, view, "Delta: 10mV")
	assert.NotContains(t, view, "Connecting...")
}

func TestDashboard_SampleKeepsCellsWhenMissing(t *testing.T) {
	m := initialDashboardModel("test", nil)
	m = update(t, m, sampleMsg{sample: testSample(time.Now()), cells: []float64{3.3}})
	m = update(t, m, sampleMsg{sample: testSample(time.Now())})

	assert.Equal(t, []float64{3.3}, m.cells)
}

func TestDashboard_ErrorsLogged(t *testing.T) {
	m := initialDashboardModel("test", nil)
	m = update(t, m, connectedMsg{identity: jikong.DeviceIdentity{Cells: 4, Capacity: 50}})

	m = update(t, m, frameErrorMsg{err: jikong.ErrChecksum})
	m = update(t, m, sampleMsg{sample: testSample(time.Now()), err: &jikong.CapacityMismatchError{}})
	m = update(t, m, connectionLostMsg{err: errors.New("link lost")})

	require.Len(t, m.eventLog, 4)
	for _, e := range m.eventLog[1:] {
		assert.True(t, e.isError)
	}
	assert.Nil(t, m.identity)
	assert.Contains(t, m.View(), "link lost")
}

func TestDashboard_LogBounded(t *testing.T) {
	m := initialDashboardModel("test", nil)
	for i := 0; i < m.maxLogEntries+10; i++ {
		m.addLogEntry(fmt.Sprintf("event %d", i), false)
	}

	require.Len(t, m.eventLog, m.maxLogEntries)
	assert.Equal(t, "event 10", m.eventLog[0].message)
}

func TestDashboard_TickPollsStatistics(t *testing.T) {
	stats := jikong.NewStatistics()
	stats.Frames = 7
	stats.ChecksumErrors = 2
	m := initialDashboardModel("test", func() jikong.Statistics { return stats.Clone() })

	next, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	m = next.(dashboardModel)
	assert.Equal(t, uint64(7), m.stats.Frames)
	assert.Contains(t, m.View(), "Checksum:")
}

func TestDashboard_Quit(t *testing.T) {
	m := initialDashboardModel("test", nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, "Shutting down...\n", next.(dashboardModel).View())
}
