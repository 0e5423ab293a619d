// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// frameResult is a decoded frame with its validation outcome
type frameResult struct {
	frame            ibus.Frame
	validationErrors []ibus.ValidationError
}

// TUI model
type monitorModel struct {
	connInfo      string
	showAll       bool
	limits        ibus.Limits
	stats         *ibus.Statistics
	counters      ibus.Counters
	channels      [ibus.NumChannels]uint16
	lastFrame     time.Time
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  uint64
	syncBase      uint64 // DiscardedBytes when sync was lost
	connected     bool
	since         time.Time
	bar           progress.Model
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type monitorBatchMsg struct {
	results  []frameResult
	counters ibus.Counters
	overruns uint64
}
type connectionLostMsg struct {
	err error
}
type reconnectedMsg struct {
	connInfo string
}

// formatDuration formats a duration as a human-friendly string
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, unit(seconds, "second"))
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

func initialMonitorModel(connInfo string, showAll bool, limits ibus.Limits) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		showAll:       showAll,
		limits:        limits,
		stats:         ibus.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		connected:     true,
		since:         time.Now(),
		bar:           progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case connectionLostMsg:
		m.connected = false
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)

	case reconnectedMsg:
		m.connected = true
		m.connInfo = msg.connInfo
		m.synchronized = false
		m.syncBase = m.counters.DiscardedBytes
		m.addLogEntry("Reconnected: "+msg.connInfo, false)

	case monitorBatchMsg:
		m.applyBatch(msg)
	}

	return m, nil
}

func (m *monitorModel) applyBatch(msg monitorBatchMsg) {
	// Rejections since the previous batch; ignored until the first frame
	delta := msg.counters.Sub(m.counters)
	if m.synchronized {
		m.logDecodeErrors(delta)
	}

	for _, r := range msg.results {
		if !m.synchronized {
			m.synchronized = true
			m.invalidBytes = msg.counters.DiscardedBytes - m.syncBase
			if m.invalidBytes > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", m.invalidBytes), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}

		m.stats.Record(r.validationErrors)
		m.channels = r.frame.Channels
		m.lastFrame = r.frame.Timestamp

		if len(r.validationErrors) > 0 {
			for _, err := range r.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", err.Type, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry("CHANNELS (valid)", false)
		}
	}

	m.counters = msg.counters
	m.stats.Update(msg.counters)
	m.stats.Overruns = msg.overruns
}

func (m *monitorModel) logDecodeErrors(delta ibus.Counters) {
	if delta.ChecksumErrors > 0 {
		m.addLogEntry(fmt.Sprintf("CHECKSUM ERROR: %d frame(s) rejected", delta.ChecksumErrors), true)
	}
	if delta.UnknownCommands > 0 {
		m.addLogEntry(fmt.Sprintf("UNKNOWN COMMAND: %d frame(s) rejected", delta.UnknownCommands), true)
	}
	if delta.AbortedFrames > 0 {
		m.addLogEntry(fmt.Sprintf("FRAME ABORTED: %d frame(s) cut short by a gap", delta.AbortedFrames), true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
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

// channelFill maps a channel value onto the configured range
func channelFill(v uint16, limits ibus.Limits) float64 {
	if limits.Max <= limits.Min {
		return 0
	}
	switch {
	case v <= limits.Min:
		return 0
	case v >= limits.Max:
		return 1
	}
	return float64(v-limits.Min) / float64(limits.Max-limits.Min)
}

func (m monitorModel) View() string {
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
	s.WriteString(titleStyle.Render("IBUSTAT - MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up %s | 'r' reset stats, 'q' quit",
		m.connInfo, mode, formatDuration(time.Since(m.since)))))
	s.WriteString("\n\n")

	// Link status
	switch {
	case !m.connected:
		s.WriteString(errorStyle.Render("✗ Connection lost, reconnecting..."))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		if !m.lastFrame.IsZero() {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" | last frame %v ago", time.Since(m.lastFrame).Round(time.Millisecond))))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	st := m.stats
	total := st.TotalFrames()
	errorsTotal := st.Decoder.Errors()
	var validPercent, errorPercent float64
	if total > 0 {
		validPercent = float64(st.Decoder.Frames) * 100.0 / float64(total)
		errorPercent = float64(errorsTotal) * 100.0 / float64(total)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", total)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Decoder.Frames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errorsTotal, errorPercent)),
	))

	if errorsTotal > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", st.Decoder.ChecksumErrors)),
			statsLabelStyle.Render("Unknown Cmd:"), errorStyle.Render(fmt.Sprintf("%d", st.Decoder.UnknownCommands)),
			statsLabelStyle.Render("Aborted:"), errorStyle.Render(fmt.Sprintf("%d", st.Decoder.AbortedFrames)),
		))
	}

	if st.AnomalousFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", st.AnomalousFrames)),
			headerStyle.Render("out of range"), st.OutOfRange,
			headerStyle.Render("stale"), st.StaleFrames,
		))
	}

	if st.Overruns > 0 || st.Decoder.DiscardedBytes > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Discarded:"), warningStyle.Render(fmt.Sprintf("%d bytes", st.Decoder.DiscardedBytes)),
			statsLabelStyle.Render("Overruns:"), warningStyle.Render(fmt.Sprintf("%d bytes", st.Overruns)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Channels
	s.WriteString(statsLabelStyle.Render("Channels:"))
	s.WriteString("\n")

	channelContent := strings.Builder{}
	for i, v := range m.channels {
		value := statsValueStyle.Render(fmt.Sprintf("%4d", v))
		if m.synchronized && (v < m.limits.Min || v > m.limits.Max) {
			value = errorStyle.Render(fmt.Sprintf("%4d", v))
		}
		channelContent.WriteString(fmt.Sprintf("%s %s %s",
			statsLabelStyle.Render(fmt.Sprintf("CH%-2d", i+1)),
			value,
			m.bar.ViewAs(channelFill(v, m.limits)),
		))
		if i < len(m.channels)-1 {
			channelContent.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(channelContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 32 // Reserve space for header, stats and channels
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
