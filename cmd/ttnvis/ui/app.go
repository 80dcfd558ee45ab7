package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
)

// Page identifies one of the viewer pages.
type Page int

const (
	PageDashboard Page = iota
	PageOperations
	PagePerformance
	PageTensors

	pageCount
)

var pageNames = [pageCount]string{"Dashboard", "Operations", "Performance", "Tensors"}

type dataLoadedMsg struct {
	data *Data
	err  error
}

type artifactChangedMsg struct{}

// App is the root bubbletea model. It owns the page models and the
// artifact watcher, and routes input to the active page.
type App struct {
	styles  Styles
	loader  Loader
	watcher *fsnotify.Watcher

	page    Page
	width   int
	height  int
	loading bool
	err     error
	data    *Data

	dashboard   DashboardPageModel
	operations  OperationsPageModel
	performance PerfPageModel
	tensors     TensorsPageModel
}

// NewApp creates the viewer. watchPaths may be empty, in which case
// the data is only loaded once (or on manual reload with 'r').
func NewApp(loader Loader, watchPaths []string) (*App, error) {
	styles := DefaultStyles()

	var watcher *fsnotify.Watcher
	if len(watchPaths) > 0 {
		var err error
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create artifact watcher: %w", err)
		}
		for _, p := range watchPaths {
			if err := watcher.Add(p); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
	}

	return &App{
		styles:      styles,
		loader:      loader,
		watcher:     watcher,
		loading:     true,
		dashboard:   NewDashboardPageModel(styles),
		operations:  NewOperationsPageModel(styles),
		performance: NewPerfPageModel(styles),
		tensors:     NewTensorsPageModel(styles),
	}, nil
}

// Close releases the artifact watcher.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}
}

// Init kicks off the initial load and the watch loop.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.loadCmd()}
	if a.watcher != nil {
		cmds = append(cmds, a.waitForChange())
	}
	return tea.Batch(cmds...)
}

func (a *App) loadCmd() tea.Cmd {
	loader := a.loader
	return func() tea.Msg {
		d, err := loader()
		return dataLoadedMsg{data: d, err: err}
	}
}

// waitForChange blocks on the next relevant filesystem event. The
// command re-arms itself from Update after each event.
func (a *App) waitForChange() tea.Cmd {
	watcher := a.watcher
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					return artifactChangedMsg{}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Header and footer take one line each plus a blank line.
		pageH := msg.Height - 3
		if pageH < 1 {
			pageH = 1
		}
		a.dashboard.SetSize(msg.Width, pageH)
		a.operations.SetSize(msg.Width, pageH)
		a.performance.SetSize(msg.Width, pageH)
		a.tensors.SetSize(msg.Width, pageH)
		return a, nil

	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}

	case dataLoadedMsg:
		a.loading = false
		a.err = msg.err
		if msg.err == nil {
			a.data = msg.data
			a.dashboard.UpdateContent(msg.data)
			a.operations.UpdateContent(msg.data)
			a.performance.UpdateContent(msg.data)
			a.tensors.UpdateContent(msg.data)
		}
		return a, nil

	case artifactChangedMsg:
		a.loading = true
		cmds := []tea.Cmd{a.loadCmd()}
		if a.watcher != nil {
			cmds = append(cmds, a.waitForChange())
		}
		return a, tea.Batch(cmds...)
	}

	return a, a.updateActivePage(msg)
}

// handleKey consumes global navigation keys. Page-local keys fall
// through to the active page.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	// The operations list owns the keyboard while filtering.
	if a.page == PageOperations && a.operations.list.FilterState() == list.Filtering {
		return a.updateActivePage(msg), true
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit, true
	case "r":
		a.loading = true
		return a.loadCmd(), true
	case "]":
		a.page = (a.page + 1) % pageCount
		return nil, true
	case "[":
		a.page = (a.page + pageCount - 1) % pageCount
		return nil, true
	case "1", "2", "3", "4":
		a.page = Page(msg.String()[0] - '1')
		return nil, true
	}
	return nil, false
}

func (a *App) updateActivePage(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.page {
	case PageDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	case PageOperations:
		a.operations, cmd = a.operations.Update(msg)
	case PagePerformance:
		a.performance, cmd = a.performance.Update(msg)
	case PageTensors:
		a.tensors, cmd = a.tensors.Update(msg)
	}
	return cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.err != nil {
		return a.styles.Error.Render("Error: "+a.err.Error()) +
			"\n" + a.styles.Muted.Render("r: retry • q: quit")
	}

	var tabs []string
	for i := Page(0); i < pageCount; i++ {
		label := fmt.Sprintf("%d %s", i+1, pageNames[i])
		if i == a.page {
			tabs = append(tabs, a.styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, a.styles.Tab.Render(label))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if a.loading {
		header += a.styles.Muted.Render("  loading...")
	}

	var body string
	switch a.page {
	case PageDashboard:
		body = a.dashboard.View()
	case PageOperations:
		body = a.operations.View()
	case PagePerformance:
		body = a.performance.View()
	case PageTensors:
		body = a.tensors.View()
	}

	help := a.styles.Footer.Render("1-4: pages • [/]: prev/next • r: reload • q: quit")

	return strings.Join([]string{header, body, help}, "\n")
}

// Run starts the viewer and blocks until the user quits.
func Run(loader Loader, watchPaths []string) error {
	app, err := NewApp(loader, watchPaths)
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
