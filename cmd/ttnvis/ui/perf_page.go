package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// PerfPageModel renders the device timing view: the op-code
// distribution and the worst host-overhead offenders.
type PerfPageModel struct {
	viewport viewport.Model
	styles   Styles
	data     *Data
	width    int
	height   int
}

// NewPerfPageModel creates the performance page.
func NewPerfPageModel(styles Styles) PerfPageModel {
	vp := viewport.New(80, 20)
	vp.SetContent("Loading performance data...")
	return PerfPageModel{viewport: vp, styles: styles}
}

// SetSize updates the viewport dimensions.
func (m *PerfPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.renderContent()
}

// UpdateContent replaces the page data.
func (m *PerfPageModel) UpdateContent(d *Data) {
	m.data = d
	m.renderContent()
}

func (m *PerfPageModel) renderContent() {
	if m.data == nil {
		return
	}
	if !m.data.HasPerf {
		m.viewport.SetContent(m.styles.Muted.Render(
			"No performance report configured. Point --perf at an ops_perf_results CSV."))
		return
	}
	d := m.data

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Op Distribution"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-40s %6s %12s %8s\n", "OP CODE", "COUNT", "TOTAL MS", "TIME %"))
	sb.WriteString(strings.Repeat("-", 70) + "\n")
	for _, e := range d.OpDist {
		sb.WriteString(fmt.Sprintf("%-40s %6d %12.3f %7.1f%%\n",
			truncate(e.OpCode, 40), e.Count, e.TotalTimeNs/1e6, e.PercentTime))
	}
	sb.WriteString("\n")

	sb.WriteString(m.styles.Title.Render("Top Host Overhead"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-40s %12s %12s %8s\n", "OP CODE", "DEVICE US", "GAP US", "OVHD %"))
	sb.WriteString(strings.Repeat("-", 76) + "\n")
	for _, o := range d.TopOverhead {
		sb.WriteString(fmt.Sprintf("%-40s %12.1f %12.1f %7.1f%%\n",
			truncate(o.OpCode, 40), o.DeviceTimeNs/1000, o.OpToOpGapNs/1000, o.OverheadPercent))
	}
	sb.WriteString("\n")

	status := func(label string, bound bool) string {
		if bound {
			return m.styles.Warning.Render(label + ": yes")
		}
		return m.styles.Success.Render(label + ": no")
	}
	sb.WriteString(status("Host-bound", d.Host.IsHostBound))
	sb.WriteString("  ")
	sb.WriteString(status("I/O-bound", d.MultiCQ.IsIOBound))
	sb.WriteString("\n")

	m.viewport.SetContent(sb.String())
}

// Update handles scrolling.
func (m PerfPageModel) Update(msg tea.Msg) (PerfPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m PerfPageModel) View() string {
	return m.viewport.View()
}

func truncate(s string, l int) string {
	if len(s) > l {
		return s[:l-3] + "..."
	}
	return s
}
