package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabkartei/internal/export"
	"github.com/lotas/tabkartei/internal/types"
)

// TreeNode represents a visible row in the category tree.
type TreeNode struct {
	Group *export.Group   // non-nil for category headers
	Rec   *types.TabRecord // non-nil for tab rows
}

// TreeModel manages the collapsible category tree.
type TreeModel struct {
	Groups        []export.Group
	Expanded      map[string]bool // category name -> expanded
	SavedExpanded map[string]bool // snapshot before filter override
	Selected      map[int]bool    // tab id -> selected
	Cursor        int
	Offset        int // scroll offset
	Width         int
	Height        int
	Filter        types.FilterMode
	Query         string // substring filter over title/URL/summary
	IdleDays      int
}

func NewTreeModel(groups []export.Group, idleDays int) TreeModel {
	expanded := make(map[string]bool)
	for _, g := range groups {
		expanded[g.Name] = true
	}
	return TreeModel{
		Groups:   groups,
		Expanded: expanded,
		Selected: make(map[int]bool),
		IdleDays: idleDays,
	}
}

// SetGroups replaces the tree contents, keeping cursor, scroll and
// expanded state where possible.
func (m *TreeModel) SetGroups(groups []export.Group) {
	m.Groups = groups
	for _, g := range groups {
		if _, ok := m.Expanded[g.Name]; !ok {
			m.Expanded[g.Name] = true
		}
	}
	nodes := m.VisibleNodes()
	if m.Cursor >= len(nodes) {
		m.Cursor = len(nodes) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	if m.Offset > m.Cursor {
		m.Offset = m.Cursor
	}
}

// VisibleNodes returns the flat list of currently visible rows.
func (m TreeModel) VisibleNodes() []TreeNode {
	var nodes []TreeNode
	for i := range m.Groups {
		g := &m.Groups[i]
		if m.filtering() && m.matchCount(g) == 0 {
			continue
		}
		nodes = append(nodes, TreeNode{Group: g})
		if m.Expanded[g.Name] {
			for _, rec := range g.Tabs {
				if m.matchesFilter(rec) {
					nodes = append(nodes, TreeNode{Rec: rec})
				}
			}
		}
	}
	return nodes
}

func (m TreeModel) matchesFilter(rec *types.TabRecord) bool {
	if m.Filter == types.FilterIdle && rec.IdleDays(time.Now()) < m.IdleDays {
		return false
	}
	if m.Query != "" {
		q := strings.ToLower(m.Query)
		if !strings.Contains(strings.ToLower(rec.Title), q) &&
			!strings.Contains(strings.ToLower(rec.URL), q) &&
			!strings.Contains(strings.ToLower(rec.Summary), q) {
			return false
		}
	}
	return true
}

func (m TreeModel) filtering() bool {
	return m.Filter != types.FilterAll || m.Query != ""
}

func (m TreeModel) matchCount(g *export.Group) int {
	n := 0
	for _, rec := range g.Tabs {
		if m.matchesFilter(rec) {
			n++
		}
	}
	return n
}

// SetFilter changes the active filter and manages expanded-state
// save/restore.
func (m *TreeModel) SetFilter(f types.FilterMode) {
	wasFiltering := m.filtering()
	m.Filter = f
	m.applyFilterState(wasFiltering)
}

// SetQuery changes the substring filter.
func (m *TreeModel) SetQuery(q string) {
	wasFiltering := m.filtering()
	m.Query = q
	m.applyFilterState(wasFiltering)
}

func (m *TreeModel) applyFilterState(wasFiltering bool) {
	if m.filtering() {
		if !wasFiltering {
			m.SavedExpanded = make(map[string]bool, len(m.Expanded))
			for name, exp := range m.Expanded {
				m.SavedExpanded[name] = exp
			}
		}
		for _, g := range m.Groups {
			m.Expanded[g.Name] = true
		}
	} else if m.SavedExpanded != nil {
		for name, exp := range m.SavedExpanded {
			m.Expanded[name] = exp
		}
		m.SavedExpanded = nil
	}

	m.Cursor = 0
	m.Offset = 0
}

// SelectedNode returns the row under the cursor, or nil.
func (m TreeModel) SelectedNode() *TreeNode {
	nodes := m.VisibleNodes()
	if m.Cursor >= 0 && m.Cursor < len(nodes) {
		return &nodes[m.Cursor]
	}
	return nil
}

func (m *TreeModel) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
}

func (m *TreeModel) MoveDown() {
	nodes := m.VisibleNodes()
	if m.Cursor < len(nodes)-1 {
		m.Cursor++
	}
	visibleRows := m.Height - 2
	if visibleRows < 1 {
		visibleRows = 1
	}
	if m.Cursor >= m.Offset+visibleRows {
		m.Offset = m.Cursor - visibleRows + 1
	}
}

// Toggle expands/collapses the selected category.
func (m *TreeModel) Toggle() {
	node := m.SelectedNode()
	if node == nil || node.Group == nil {
		return
	}
	m.Expanded[node.Group.Name] = !m.Expanded[node.Group.Name]
}

// CollapseOrParent collapses the selected category if expanded, or
// jumps to the parent header if the cursor is on a tab.
func (m *TreeModel) CollapseOrParent() {
	node := m.SelectedNode()
	if node == nil {
		return
	}
	if node.Group != nil {
		if m.Expanded[node.Group.Name] {
			m.Expanded[node.Group.Name] = false
		}
		return
	}
	nodes := m.VisibleNodes()
	for i := m.Cursor - 1; i >= 0; i-- {
		if nodes[i].Group != nil {
			m.Cursor = i
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
			return
		}
	}
}

// ExpandOrEnter expands the selected category if collapsed, or moves
// into the first child tab if already expanded.
func (m *TreeModel) ExpandOrEnter() {
	node := m.SelectedNode()
	if node == nil || node.Group == nil {
		return
	}
	if !m.Expanded[node.Group.Name] {
		m.Expanded[node.Group.Name] = true
		return
	}
	nodes := m.VisibleNodes()
	if m.Cursor+1 < len(nodes) && nodes[m.Cursor+1].Rec != nil {
		m.Cursor++
		visibleRows := m.Height - 2
		if visibleRows < 1 {
			visibleRows = 1
		}
		if m.Cursor >= m.Offset+visibleRows {
			m.Offset = m.Cursor - visibleRows + 1
		}
	}
}

// View renders the tree.
func (m TreeModel) View() string {
	nodes := m.VisibleNodes()
	if len(nodes) == 0 {
		if m.Query != "" {
			return fmt.Sprintf("No tabs match %q.", m.Query)
		}
		if m.Filter == types.FilterIdle {
			return fmt.Sprintf("No tabs idle for %d+ days.", m.IdleDays)
		}
		return "No tabs yet. Waiting for the extension..."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}

	var b strings.Builder
	end := m.Offset + visibleRows
	if end > len(nodes) {
		end = len(nodes)
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	idleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))  // orange
	highStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	groupStyle := lipgloss.NewStyle().Bold(true)

	now := time.Now()
	for i := m.Offset; i < end; i++ {
		node := nodes[i]
		var line string

		if node.Group != nil {
			icon := "▶"
			if m.Expanded[node.Group.Name] {
				icon = "▼"
			}
			var label string
			if !m.filtering() {
				label = fmt.Sprintf("%s %s (%d tabs)", icon, node.Group.Name, len(node.Group.Tabs))
			} else {
				label = fmt.Sprintf("%s %s (%d/%d tabs)", icon, node.Group.Name, m.matchCount(node.Group), len(node.Group.Tabs))
			}
			line = groupStyle.Render(label)
		} else if node.Rec != nil {
			prefix := "  "
			if m.Selected[node.Rec.ID] {
				prefix = "▸ "
			}
			var markers []string
			if node.Rec.IdleDays(now) >= m.IdleDays {
				markers = append(markers, idleStyle.Render("◷"))
			}
			if node.Rec.Importance == "high" {
				markers = append(markers, highStyle.Render("!"))
			}
			marker := ""
			if len(markers) > 0 {
				marker = strings.Join(markers, "") + " "
			}

			text := node.Rec.Title
			if text == "" {
				text = node.Rec.URL
			}
			maxLen := m.Width - len(prefix) - len(markers)*2 - 2
			if maxLen < 10 {
				maxLen = 10
			}
			if len(text) > maxLen {
				text = text[:maxLen-1] + "…"
			}
			line = prefix + marker + text
		}

		if i == m.Cursor {
			for lipgloss.Width(line) < m.Width {
				line += " "
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
