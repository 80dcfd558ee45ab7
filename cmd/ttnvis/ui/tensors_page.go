package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ttnvis/internal/analysis"
)

// TensorsPageModel renders the tensor inventory with the sharding and
// data-format rollups.
type TensorsPageModel struct {
	viewport viewport.Model
	styles   Styles
	data     *Data
	width    int
	height   int
}

// NewTensorsPageModel creates the tensors page.
func NewTensorsPageModel(styles Styles) TensorsPageModel {
	vp := viewport.New(80, 20)
	vp.SetContent("Loading tensors...")
	return TensorsPageModel{viewport: vp, styles: styles}
}

// SetSize updates the viewport dimensions.
func (m *TensorsPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.renderContent()
}

// UpdateContent replaces the page data.
func (m *TensorsPageModel) UpdateContent(d *Data) {
	m.data = d
	m.renderContent()
}

func (m *TensorsPageModel) renderContent() {
	if m.data == nil {
		return
	}
	d := m.data

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(fmt.Sprintf("Tensors (%d)", len(d.Tensors))))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Sharded: %.1f%%  Interleaved: %.1f%%  Reshards: %d\n",
		d.Sharding.ShardedPercent, d.Sharding.InterleavedPercent, d.Sharding.ReshardCount))
	sb.WriteString(fmt.Sprintf("BFLOAT8_B: %.1f%%  TILE layout: %.1f%%\n",
		d.DataFormat.BFloat8BUsagePercent, d.DataFormat.TileLayoutPercent))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("%6s  %-24s %-12s %-10s %-8s %s\n",
		"ID", "SHAPE", "DTYPE", "LAYOUT", "MEMORY", "SHARDING"))
	sb.WriteString(strings.Repeat("-", 84) + "\n")
	for _, t := range d.Tensors {
		strategy := analysis.ParseShardingStrategy(t.MemoryConfig)
		memory := analysis.ParseBufferType(t.MemoryConfig, t.BufferType)
		sb.WriteString(fmt.Sprintf("%6d  %-24s %-12s %-10s %-8s %s\n",
			t.ID, truncate(t.Shape, 24), t.DType, t.Layout, memory, strategy))
	}

	m.viewport.SetContent(sb.String())
}

// Update handles scrolling.
func (m TensorsPageModel) Update(msg tea.Msg) (TensorsPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m TensorsPageModel) View() string {
	return m.viewport.View()
}
