// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/emvstat/internal/monitor"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var tuiSample string

var tuiCmd = &cobra.Command{
	Use:   "tui [payload]",
	Short: "Interactive payload inspector",
	Long: `Inspect payloads interactively.

Paste a payload into the input line and press Enter to decode it. When
--port or --url is given, scanned payloads appear as they arrive. Every
decoded payload is kept in the history; select one to show its report.

Keys:
  enter   decode the input line
  tab     cycle focus (input, history, report)
  ctrl+t  toggle the TLV record dump
  ctrl+r  reset statistics
  esc     quit (ctrl+c works everywhere)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiSample, "sample", "", "Preload a built-in sample")
}

// Focus targets
const (
	focusInput = iota
	focusHistory
	focusReport
	focusCount
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// historyEntry is one inspected payload. It implements list.DefaultItem.
type historyEntry struct {
	timestamp time.Time
	source    string
	raw       string
	payload   *emvqr.ParsedPayload
	err       error
	anomalies []emvqr.Anomaly
}

func (h historyEntry) Title() string {
	if h.err != nil {
		return "✗ malformed payload"
	}
	mark := "✓"
	if len(h.anomalies) > 0 {
		mark = "!"
	}
	return mark + " " + orUnknown(h.payload.MerchantName)
}

func (h historyEntry) Description() string {
	return fmt.Sprintf("%s %s", h.timestamp.Format("15:04:05"), h.source)
}

func (h historyEntry) FilterValue() string {
	return h.raw
}

// TUI model
type inspectorModel struct {
	decoder  *emvqr.Decoder
	connInfo string
	stats    *monitor.Statistics
	started  time.Time

	input   textinput.Model
	history list.Model
	report  viewport.Model
	focus   int

	eventLog      []logEntry
	maxLogEntries int

	showTokens     bool
	connectionLost bool
	width          int
	height         int
	quitting       bool
}

// Messages
type tickMsg time.Time
type scanMsg struct {
	raw string
}
type connectionLostMsg struct {
	err error
}

func newInspectorModel(decoder *emvqr.Decoder, connInfo string) inspectorModel {
	ti := textinput.New()
	ti.Placeholder = "paste a payload and press enter"
	ti.CharLimit = maxScanLength
	ti.Width = 60
	ti.Focus()

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	history := list.New([]list.Item{}, delegate, 32, 10)
	history.Title = "History"
	history.SetShowStatusBar(false)
	history.SetShowHelp(false)
	history.SetFilteringEnabled(false)

	report := viewport.New(60, 10)
	report.SetContent("No payload decoded yet.")

	return inspectorModel{
		decoder:       decoder,
		connInfo:      connInfo,
		stats:         monitor.NewStatistics(),
		started:       time.Now(),
		input:         ti,
		history:       history,
		report:        report,
		focus:         focusInput,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         100,
		height:        30,
	}
}

func (m inspectorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), textinput.Blink)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.setFocus((m.focus + 1) % focusCount)
			return m, nil
		case "ctrl+t":
			m.showTokens = !m.showTokens
			m.refreshReport()
			return m, nil
		case "ctrl+r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
			return m, nil
		case "enter":
			if m.focus == focusInput {
				raw := strings.TrimSpace(m.input.Value())
				m.input.Reset()
				if raw != "" {
					cmds = append(cmds, m.inspect("input", raw))
				}
				return m, tea.Batch(cmds...)
			}
		}

		var cmd tea.Cmd
		switch m.focus {
		case focusInput:
			m.input, cmd = m.input.Update(msg)
		case focusHistory:
			before := m.history.Index()
			m.history, cmd = m.history.Update(msg)
			if m.history.Index() != before {
				m.refreshReport()
			}
		case focusReport:
			m.report, cmd = m.report.Update(msg)
		}
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tickMsg:
		m.stats.CalculateRates()
		cmds = append(cmds, tickCmd())

	case scanMsg:
		cmds = append(cmds, m.inspect(m.connInfo, msg.raw))

	case connectionLostMsg:
		m.connectionLost = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// inspect decodes raw, records it in the history and shows its report
func (m *inspectorModel) inspect(source, raw string) tea.Cmd {
	p, err := m.decoder.Decode(raw)
	entry := historyEntry{
		timestamp: time.Now(),
		source:    source,
		raw:       raw,
		payload:   p,
		err:       err,
		anomalies: m.stats.Update(p, err),
	}

	switch {
	case err != nil:
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", err), true)
	case len(entry.anomalies) > 0:
		for _, a := range entry.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", orUnknown(p.MerchantName), a.Message), true)
		}
	default:
		m.addLogEntry(fmt.Sprintf("%s (valid)", scanSummary(p)), false)
	}

	cmd := m.history.InsertItem(0, entry)
	m.history.Select(0)
	m.refreshReport()
	return cmd
}

// selected returns the history entry shown in the report
func (m *inspectorModel) selected() (historyEntry, bool) {
	entry, ok := m.history.SelectedItem().(historyEntry)
	return entry, ok
}

func (m *inspectorModel) refreshReport() {
	entry, ok := m.selected()
	if !ok {
		return
	}
	m.report.SetContent(m.renderEntry(entry))
	m.report.GotoTop()
}

// renderEntry is the report text of one history entry
func (m *inspectorModel) renderEntry(entry historyEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s at %s\n", entry.source, entry.timestamp.Format("15:04:05.000"))
	fmt.Fprintf(&sb, "Raw: %s\n\n", entry.raw)

	if entry.err != nil {
		fmt.Fprintf(&sb, "DECODE ERROR: %v\n", entry.err)
		return sb.String()
	}

	if m.showTokens {
		if records, err := m.decoder.Records(entry.raw); err == nil {
			sb.WriteString(emvqr.FormatRecords(records, m.decoder.Profile()))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(emvqr.FormatPayload(entry.payload))
	if len(entry.anomalies) > 0 {
		sb.WriteString("\nAnomalies:\n")
		for _, a := range entry.anomalies {
			fmt.Fprintf(&sb, "  - [%s] %s\n", a.Type, a.Message)
		}
	}
	return sb.String()
}

func (m *inspectorModel) setFocus(focus int) {
	m.focus = focus
	if focus == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// resize lays out the panes: history and report side by side above the
// input line and the event log
func (m *inspectorModel) resize() {
	paneHeight := m.height - 16
	if paneHeight < 5 {
		paneHeight = 5
	}
	historyWidth := 32
	reportWidth := m.width - historyWidth - 8
	if reportWidth < 20 {
		reportWidth = 20
	}

	m.history.SetSize(historyWidth, paneHeight)
	m.report.Width = reportWidth
	m.report.Height = paneHeight
	m.input.Width = m.width - 8
}

func (m *inspectorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// formatDuration formats a duration as "2 hours, 3 minutes, and 1 second"
func formatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	units := []struct {
		name    string
		seconds int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := total / u.seconds
		total %= u.seconds
		if n == 0 && !(u.seconds == 1 && len(parts) == 0) {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

func (m inspectorModel) paneStyle(focus int) lipgloss.Style {
	if m.focus == focus {
		return focusedBoxStyle
	}
	return boxStyle
}

func (m inspectorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("EMVSTAT - PAYLOAD INSPECTOR"))
	s.WriteString("\n")
	source := m.connInfo
	if source == "" {
		source = "manual input"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Source: %s | Profile: %s | Session: %s | tab: focus, ctrl+t: tokens, esc: quit",
		source, m.decoder.Profile().Name, formatDuration(time.Since(m.started)))))
	s.WriteString("\n")
	if m.connectionLost {
		s.WriteString(warningStyle.Render("⚠ Scanner connection lost"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Statistics
	c := m.stats.Snapshot()
	var validPercent, errorPercent float64
	if c.TotalScans > 0 {
		validPercent = float64(c.ValidScans) * 100.0 / float64(c.TotalScans)
		errorPercent = float64(c.Errors()) * 100.0 / float64(c.TotalScans)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", c.TotalScans)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.ValidScans, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.Errors(), errorPercent)),
	))
	if c.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", c.CRCErrors)),
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", c.MalformedScans)),
			statsLabelStyle.Render("Incomplete:"), warningStyle.Render(fmt.Sprintf("%d", c.IncompleteScans)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Scan Rate:"), statsValueStyle.Render(fmt.Sprintf("%.2f scans/s", c.ScanRate)),
		statsLabelStyle.Render("Static/Dynamic:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", c.StaticScans, c.DynamicScans)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n")

	// History and report
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.paneStyle(focusHistory).Render(m.history.View()),
		m.paneStyle(focusReport).Render(m.report.View()),
	))
	s.WriteString("\n")

	// Input
	s.WriteString(m.paneStyle(focusInput).Width(m.width - 4).Render(m.input.View()))
	s.WriteString("\n")

	// Event log
	logContent := strings.Builder{}
	const logLines = 4
	startIdx := len(m.eventLog) - logLines
	if startIdx < 0 {
		startIdx = 0
	}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimSuffix(logContent.String(), "\n")))

	return s.String()
}

func runTUI(cmd *cobra.Command, args []string) error {
	var initial string
	if tuiSample != "" || len(args) > 0 {
		raw, err := payloadInput(args, tuiSample, nil)
		if err != nil {
			return err
		}
		initial = raw
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	connInfo := ""
	var conn Connection
	if hasConnection() {
		var err error
		conn, connInfo, err = OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	m := newInspectorModel(newDecoder(), connInfo)
	if initial != "" {
		m.inspect("argument", initial)
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if conn != nil {
		scans := make(chan string)
		go func() {
			err := readScans(ctx, conn, scans)
			close(scans)
			p.Send(connectionLostMsg{err: err})
		}()
		go func() {
			for raw := range scans {
				p.Send(scanMsg{raw: raw})
			}
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
