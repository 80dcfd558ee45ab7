package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// DashboardPageModel renders the run overview: report counts, memory
// usage, timing totals, and the combined analyzer recommendations.
type DashboardPageModel struct {
	viewport viewport.Model
	styles   Styles
	data     *Data
	width    int
	height   int
}

// NewDashboardPageModel creates the dashboard page.
func NewDashboardPageModel(styles Styles) DashboardPageModel {
	vp := viewport.New(80, 20)
	vp.SetContent("Loading report...")
	return DashboardPageModel{viewport: vp, styles: styles}
}

// SetSize updates the viewport dimensions.
func (m *DashboardPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.renderContent()
}

// UpdateContent replaces the page data.
func (m *DashboardPageModel) UpdateContent(d *Data) {
	m.data = d
	m.renderContent()
}

func (m *DashboardPageModel) renderContent() {
	if m.data == nil {
		return
	}
	d := m.data

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Report"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Snapshot:    %s\n", d.Info.ProfilerPath))
	if d.Info.PerformancePath != "" {
		sb.WriteString(fmt.Sprintf("Performance: %s\n", d.Info.PerformancePath))
	}
	sb.WriteString(fmt.Sprintf("Operations: %d  Tensors: %d  Buffers: %d  Devices: %d\n",
		d.Info.OperationCount, d.Info.TensorCount, d.Info.BufferCount, d.Info.DeviceCount))
	if d.Info.TotalDurationNs > 0 {
		sb.WriteString(fmt.Sprintf("Host duration: %.3f ms\n", d.Info.TotalDurationNs/1e6))
	}
	sb.WriteString("\n")

	sb.WriteString(m.styles.Title.Render("Memory"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("L1:   %s / %s (%.1f%%) across %d buffers\n",
		formatBytes(d.Memory.L1Used), formatBytes(d.Memory.L1Total),
		d.Memory.L1UsagePercent(), d.Memory.L1BufferCount))
	if d.Memory.DRAMTotal > 0 {
		sb.WriteString(fmt.Sprintf("DRAM: %s / %s (%.1f%%) across %d buffers\n",
			formatBytes(d.Memory.DRAMUsed), formatBytes(d.Memory.DRAMTotal),
			d.Memory.DRAMUsagePercent(), d.Memory.DRAMBufferCount))
	} else {
		sb.WriteString(fmt.Sprintf("DRAM: %s used across %d buffers\n",
			formatBytes(d.Memory.DRAMUsed), d.Memory.DRAMBufferCount))
	}
	sb.WriteString("\n")

	if d.HasPerf {
		sb.WriteString(m.styles.Title.Render("Device Timing"))
		sb.WriteString("\n")
		s := d.PerfSummary
		sb.WriteString(fmt.Sprintf("Ops: %d  Total: %.3f ms  Avg: %.1f us  Max: %.1f us\n",
			s.TotalOperations, s.TotalTimeNs/1e6, s.AvgTimeNs/1000, s.MaxTimeNs/1000))
		sb.WriteString(fmt.Sprintf("Host overhead: %.1f%%  I/O overhead: %.1f%%\n",
			d.Host.HostOverheadPercent, d.MultiCQ.IOOverheadPercent))
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderRecommendations())

	m.viewport.SetContent(sb.String())
}

// renderRecommendations formats the analyzer output as markdown and
// runs it through glamour. Falls back to plain bullets when the
// renderer fails.
func (m *DashboardPageModel) renderRecommendations() string {
	recs := m.data.Recommendations()
	if len(recs) == 0 {
		return ""
	}

	var md strings.Builder
	md.WriteString("## Recommendations\n\n")
	for _, r := range recs {
		md.WriteString("- " + r + "\n")
	}

	style := "light"
	if m.styles.Theme.IsDark {
		style = "dark"
	}
	width := m.width - 2
	if width < 20 {
		width = 78
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, rerr := r.Render(md.String()); rerr == nil {
			return out
		}
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Recommendations"))
	sb.WriteString("\n")
	for _, rec := range recs {
		sb.WriteString("  • " + rec + "\n")
	}
	return sb.String()
}

// Update handles scrolling.
func (m DashboardPageModel) Update(msg tea.Msg) (DashboardPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m DashboardPageModel) View() string {
	return m.viewport.View()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
