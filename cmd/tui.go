// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// dashboardModel is the bubbletea model behind the dashboard command
type dashboardModel struct {
	connInfo      string
	statsFn       func() jikong.Statistics
	stats         jikong.Statistics
	identity      *jikong.DeviceIdentity
	connectedAt   time.Time
	lastSample    *jikong.Sample
	cells         []float64
	eventLog      []eventLogEntry
	maxLogEntries int
	spinner       spinner.Model
	charge        progress.Model
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type connectedMsg struct {
	identity jikong.DeviceIdentity
}
type sampleMsg struct {
	sample jikong.Sample
	cells  []float64
	err    error
}
type connectionLostMsg struct {
	err error
}
type frameErrorMsg struct {
	err error
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n == 0 {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialDashboardModel(connInfo string, statsFn func() jikong.Statistics) dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return dashboardModel{
		connInfo:      connInfo,
		statsFn:       statsFn,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       s,
		charge:        progress.New(progress.WithDefaultGradient()),
		width:         80,
		height:        24,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.charge.Width = min(max(msg.Width-20, 10), 60)

	case tickMsg:
		if m.statsFn != nil {
			m.stats = m.statsFn()
			m.stats.CalculateRates()
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		id := msg.identity
		m.identity = &id
		m.connectedAt = time.Now()
		m.addLogEntry(fmt.Sprintf("Connected: %s", id), false)

	case connectionLostMsg:
		m.identity = nil
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		return m, m.spinner.Tick

	case sampleMsg:
		sample := msg.sample
		m.lastSample = &sample
		if len(msg.cells) > 0 {
			m.cells = msg.cells
		}
		if msg.err != nil {
			m.addLogEntry(msg.err.Error(), true)
		}

	case frameErrorMsg:
		m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", msg.err), true)
	}

	return m, nil
}

func (m *dashboardModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// stateOfCharge returns remaining over full charge, clamped to [0, 1]
func stateOfCharge(s jikong.Sample) float64 {
	if s.ChargeFull <= 0 {
		return 0
	}
	return min(max(s.Charge/s.ChargeFull, 0), 1)
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("JKBMS - DASHBOARD"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Connection status
	if m.identity == nil {
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Connecting..."))
		s.WriteString("\n\n")
	} else {
		s.WriteString(statsValueStyle.Render("✓ " + m.identity.String()))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (up %s)", formatUptime(time.Since(m.connectedAt)))))
		s.WriteString("\n\n")
	}

	// Statistics
	errCount := m.stats.ChecksumErrors + m.stats.Timeouts + m.stats.CapacityMismatches
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Frames)),
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Bytes)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errCount > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", errCount))
			}
			return statsValueStyle.Render("0")
		}(),
	))

	if errCount > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts)),
			statsLabelStyle.Render("Capacity:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.CapacityMismatches)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Telemetry section (only shown once a sample arrived)
	if m.lastSample != nil {
		sample := m.lastSample
		s.WriteString(statsLabelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")

		telemetryContent := strings.Builder{}
		telemetryContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Voltage:"), statsValueStyle.Render(fmt.Sprintf("%.3f V", sample.Voltage)),
			statsLabelStyle.Render("Current:"), statsValueStyle.Render(fmt.Sprintf("%+.3f A", sample.Current)),
		))
		telemetryContent.WriteString(fmt.Sprintf("%s %s %s\n",
			statsLabelStyle.Render("Charge:"),
			m.charge.ViewAs(stateOfCharge(*sample)),
			statsValueStyle.Render(fmt.Sprintf("%.3f/%.3f Ah", sample.Charge, sample.ChargeFull)),
		))
		telemetryContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Temp:"), statsValueStyle.Render(fmt.Sprintf("%.1f/%.1f°C", sample.Temperatures[0], sample.Temperatures[1])),
			statsLabelStyle.Render("MOS:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C", sample.MOSTemperature)),
			statsLabelStyle.Render("Cycles:"), statsValueStyle.Render(fmt.Sprintf("%d", sample.Cycles)),
		))
		telemetryContent.WriteString(fmt.Sprintf("%s %s",
			statsLabelStyle.Render("Balance:"), statsValueStyle.Render(fmt.Sprintf("%+.3f A", sample.BalanceCurrent)),
		))

		// Cells, four per row
		for i, v := range m.cells {
			if i%4 == 0 {
				telemetryContent.WriteString("\n")
			}
			telemetryContent.WriteString(fmt.Sprintf("%s %s  ",
				statsLabelStyle.Render(fmt.Sprintf("C%02d", i+1)),
				statsValueStyle.Render(fmt.Sprintf("%.3fV", v)),
			))
		}
		if len(m.cells) > 0 {
			telemetryContent.WriteString("\n")
			telemetryContent.WriteString(headerStyle.Render(formatCellSpread(m.cells)))
		}

		s.WriteString(boxStyle.Render(telemetryContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 24 // Reserve space for header, stats and telemetry
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
