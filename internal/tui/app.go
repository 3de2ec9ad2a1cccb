package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabkartei/internal/controller"
	"github.com/lotas/tabkartei/internal/export"
	"github.com/lotas/tabkartei/internal/registry"
	"github.com/lotas/tabkartei/internal/server"
	"github.com/lotas/tabkartei/internal/types"
)

// refreshEvery is how often the view re-reads the registry. Lifecycle
// events land in the registry between ticks; the UI only has to stay
// close, not instant.
const refreshEvery = 2 * time.Second

// --- Messages ---

type refreshMsg struct {
	groups    []export.Group
	stats     types.Stats
	connected bool
	analyzing bool
}

type actionDoneMsg struct {
	status string
	err    error
}

type tickMsg time.Time

// --- Model ---

type Model struct {
	reg      *registry.Registry
	ctl      *controller.Controller
	srv      *server.Server
	labels   []string
	idleDays int
	port     int

	groups    []export.Group
	stats     types.Stats
	connected bool
	analyzing bool
	status    string

	tree      TreeModel
	detail    DetailModel
	searching bool
	width     int
	height    int
}

func NewModel(reg *registry.Registry, ctl *controller.Controller, srv *server.Server, labels []string, idleDays int) Model {
	return Model{
		reg:      reg,
		ctl:      ctl,
		srv:      srv,
		labels:   labels,
		idleDays: idleDays,
		port:     srv.Port(),
		tree:     NewTreeModel(nil, idleDays),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{
			groups:    export.Groups(m.reg.Snapshot(), m.labels),
			stats:     m.reg.Stats(time.Now(), m.idleDays),
			connected: m.srv.Connected(),
			analyzing: m.ctl.BulkRunning(),
		}
	}
}

func (m *Model) selectedOrCurrentTabIDs() []int {
	if len(m.tree.Selected) > 0 {
		ids := make([]int, 0, len(m.tree.Selected))
		for id := range m.tree.Selected {
			ids = append(ids, id)
		}
		return ids
	}
	if node := m.tree.SelectedNode(); node != nil && node.Rec != nil {
		return []int{node.Rec.ID}
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		treeWidth := m.width * 60 / 100
		detailWidth := m.width - treeWidth - 3 // borders
		paneHeight := m.height - 5             // top bar + bottom bar
		m.tree.Width = treeWidth
		m.tree.Height = paneHeight
		m.detail.Width = detailWidth
		m.detail.Height = paneHeight
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case refreshMsg:
		m.groups = msg.groups
		m.stats = msg.stats
		m.connected = msg.connected
		m.analyzing = msg.analyzing
		m.tree.SetGroups(msg.groups)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		} else {
			m.status = msg.status
		}
		return m, m.refresh()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter":
			m.searching = false
		case "esc":
			m.searching = false
			m.tree.SetQuery("")
		case "backspace":
			if q := m.tree.Query; q != "" {
				m.tree.SetQuery(q[:len(q)-1])
			}
		case "ctrl+c":
			return m, tea.Quit
		default:
			if msg.Type == tea.KeyRunes {
				m.tree.SetQuery(m.tree.Query + string(msg.Runes))
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.tree.MoveUp()
	case "down", "j":
		m.tree.MoveDown()
	case "enter":
		node := m.tree.SelectedNode()
		if node != nil && node.Rec != nil {
			if !m.connected {
				m.status = "no extension connected"
				return m, nil
			}
			id := node.Rec.ID
			return m, func() tea.Msg {
				if err := m.ctl.FocusTab(id); err != nil {
					return actionDoneMsg{err: err}
				}
				return actionDoneMsg{status: "focused tab"}
			}
		}
		m.tree.Toggle()
	case "h":
		m.tree.CollapseOrParent()
	case "l":
		m.tree.ExpandOrEnter()
	case " ":
		node := m.tree.SelectedNode()
		if node != nil && node.Rec != nil {
			id := node.Rec.ID
			if m.tree.Selected[id] {
				delete(m.tree.Selected, id)
			} else {
				m.tree.Selected[id] = true
			}
		}
		m.tree.MoveDown()
	case "/":
		m.searching = true
	case "esc":
		if m.tree.Query != "" {
			m.tree.SetQuery("")
		} else {
			m.tree.Selected = make(map[int]bool)
		}
	case "i":
		if m.tree.Filter == types.FilterAll {
			m.tree.SetFilter(types.FilterIdle)
		} else {
			m.tree.SetFilter(types.FilterAll)
		}
	case "x":
		if !m.connected {
			m.status = "no extension connected"
			return m, nil
		}
		ids := m.selectedOrCurrentTabIDs()
		if len(ids) == 0 {
			return m, nil
		}
		m.tree.Selected = make(map[int]bool)
		return m, func() tea.Msg {
			if err := m.ctl.CloseTabs(ids); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: fmt.Sprintf("closed %d tabs", len(ids))}
		}
	case "a":
		if !m.connected {
			m.status = "no extension connected"
			return m, nil
		}
		m.analyzing = true
		return m, func() tea.Msg {
			m.ctl.AnalyzeAll(context.Background())
			return actionDoneMsg{status: "analysis complete"}
		}
	case "s":
		node := m.tree.SelectedNode()
		if node == nil || node.Rec == nil {
			return m, nil
		}
		id := node.Rec.ID
		m.status = "analyzing tab..."
		return m, func() tea.Msg {
			if err := m.ctl.AnalyzeOne(context.Background(), id); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: "tab analyzed"}
		}
	case "r":
		if !m.connected {
			m.status = "no extension connected"
			return m, nil
		}
		return m, func() tea.Msg {
			m.ctl.Reconcile(context.Background())
			return actionDoneMsg{status: "reconciled"}
		}
	}
	return m, nil
}

func (m Model) View() string {
	// Top bar
	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	var connStr string
	if m.connected {
		connStr = "● connected"
	} else {
		connStr = fmt.Sprintf("○ waiting on :%d", m.port)
	}
	statsStr := fmt.Sprintf("%d tabs · %d categories", m.stats.TotalTabs, m.stats.Categories)
	if m.stats.IdleTabs > 0 {
		statsStr += fmt.Sprintf(" · %d idle", m.stats.IdleTabs)
	}
	if m.analyzing {
		statsStr += " · analyzing..."
	}
	topBar := topBarStyle.Render(connStr + "  " + statsStr)

	// Panes
	treeBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.tree.Width).
		Height(m.tree.Height)

	detailBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.detail.Width).
		Height(m.detail.Height)

	var detailContent string
	if node := m.tree.SelectedNode(); node != nil {
		if node.Rec != nil {
			detailContent = m.detail.ViewRecord(node.Rec, m.idleDays)
		} else if node.Group != nil {
			detailContent = m.detail.ViewGroup(node.Group, m.idleDays)
		}
	}

	left := treeBorder.Render(m.tree.View())
	right := detailBorder.Render(detailContent)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	// Bottom bar
	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	var bottomText string
	if n := len(m.tree.Selected); n > 0 {
		bottomText = fmt.Sprintf("%d selected · esc clear · ", n)
	}
	bottomText += "↑↓/jk navigate · enter focus · space select · x close · s analyze · a analyze all · / search · i idle · r refresh · q quit"
	if m.tree.Filter == types.FilterIdle {
		bottomText += fmt.Sprintf("  [idle %d+d]", m.idleDays)
	}
	if m.searching {
		bottomText += "  /" + m.tree.Query + "▌"
	} else if m.tree.Query != "" {
		bottomText += fmt.Sprintf("  [/%s]", m.tree.Query)
	}
	if m.status != "" {
		bottomText += "  " + m.status
	}
	bottomBar := bottomBarStyle.Render(bottomText)

	return lipgloss.JoinVertical(lipgloss.Left, topBar, panes, bottomBar)
}
