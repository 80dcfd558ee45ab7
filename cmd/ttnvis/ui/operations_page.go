package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ttnvis/internal/types"
)

// OperationsPageModel is a split view over the captured operations:
// a filterable list on the left, the selected operation on the right.
type OperationsPageModel struct {
	width    int
	height   int
	list     list.Model
	viewport viewport.Model
	styles   Styles

	focusViewport bool
	selected      *types.Operation
}

// operationItem adapts types.Operation to list.Item.
type operationItem struct {
	op types.Operation
}

func (i operationItem) Title() string { return fmt.Sprintf("%d  %s", i.op.ID, i.op.Name) }
func (i operationItem) Description() string {
	if i.op.Duration != nil {
		return fmt.Sprintf("%.3f ms", *i.op.Duration*1000)
	}
	return "no host timing"
}
func (i operationItem) FilterValue() string { return i.op.Name }

// NewOperationsPageModel creates the operations page.
func NewOperationsPageModel(styles Styles) OperationsPageModel {
	vp := viewport.New(0, 0)
	vp.SetContent("Select an operation.")

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Operations"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = styles.Title

	return OperationsPageModel{
		list:     l,
		viewport: vp,
		styles:   styles,
	}
}

// SetSize updates the split pane dimensions.
func (m *OperationsPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h

	listWidth := int(float64(w) * 0.4)
	m.list.SetSize(listWidth, h)
	m.viewport.Width = w - listWidth - 1
	m.viewport.Height = h
}

// UpdateContent replaces the operation list.
func (m *OperationsPageModel) UpdateContent(d *Data) {
	items := make([]list.Item, 0, len(d.Operations))
	for _, op := range d.Operations {
		items = append(items, operationItem{op: op})
	}
	m.list.SetItems(items)
	m.list.Title = fmt.Sprintf("Operations (%d)", len(d.Operations))
	m.selected = nil
}

// Update routes key events to the focused pane.
func (m OperationsPageModel) Update(msg tea.Msg) (OperationsPageModel, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		if m.list.FilterState() != list.Filtering && key.String() == "tab" {
			m.focusViewport = !m.focusViewport
			return m, nil
		}
	}

	_, isKey := msg.(tea.KeyMsg)
	if !isKey || !m.focusViewport || m.list.FilterState() == list.Filtering {
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}
	if !isKey || (m.focusViewport && m.list.FilterState() != list.Filtering) {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	if sel := m.list.SelectedItem(); sel != nil {
		item := sel.(operationItem)
		if m.selected == nil || m.selected.ID != item.op.ID {
			op := item.op
			m.selected = &op
			m.viewport.SetContent(m.renderOperation(&op))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m OperationsPageModel) renderOperation(op *types.Operation) string {
	header := m.styles.Title.Render(fmt.Sprintf("Operation %d", op.ID))
	name := m.styles.Bold.Render(op.Name)

	duration := "host duration: -"
	if op.Duration != nil {
		duration = fmt.Sprintf("host duration: %.3f ms", *op.Duration*1000)
	}
	device := "device: -"
	if op.DeviceID != nil {
		device = fmt.Sprintf("device: %d", *op.DeviceID)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		name,
		m.styles.Muted.Render(duration),
		m.styles.Muted.Render(device),
	)
}

// View renders the split view.
func (m OperationsPageModel) View() string {
	return lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), " ", m.viewport.View())
}
