package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabkartei/internal/export"
	"github.com/lotas/tabkartei/internal/types"
)

// DetailModel shows information about the selected item.
type DetailModel struct {
	Width  int
	Height int
}

func (m DetailModel) ViewRecord(rec *types.TabRecord, idleDays int) string {
	if rec == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle()
	idleWarnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	highStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	var b strings.Builder

	b.WriteString(labelStyle.Render("Title") + "\n")
	title := rec.Title
	if len(title) > m.Width-2 && m.Width > 3 {
		title = title[:m.Width-3] + "…"
	}
	b.WriteString(valueStyle.Render(title) + "\n\n")

	b.WriteString(labelStyle.Render("URL") + "\n")
	url := rec.URL
	for m.Width > 2 && len(url) > m.Width-2 {
		b.WriteString(valueStyle.Render(url[:m.Width-2]) + "\n")
		url = url[m.Width-2:]
	}
	b.WriteString(valueStyle.Render(url) + "\n\n")

	b.WriteString(labelStyle.Render("Category") + "\n")
	b.WriteString(valueStyle.Render(rec.Category) + "\n\n")

	b.WriteString(labelStyle.Render("Last Visited") + "\n")
	b.WriteString(valueStyle.Render(ageString(rec.LastAccessedTime())) + "\n\n")

	if rec.Summary != "" {
		b.WriteString(labelStyle.Render("Summary") + "\n")
		b.WriteString(wrap(rec.Summary, m.Width-2) + "\n\n")
	}

	if len(rec.Topics) > 0 {
		b.WriteString(labelStyle.Render("Topics") + "\n")
		b.WriteString(valueStyle.Render(strings.Join(rec.Topics, ", ")) + "\n\n")
	}

	var statuses []string
	if rec.Importance == "high" {
		statuses = append(statuses, highStyle.Render("High importance"))
	}
	if days := rec.IdleDays(time.Now()); days >= idleDays {
		statuses = append(statuses, idleWarnStyle.Render(fmt.Sprintf("Idle (%d days)", days)))
	}
	if len(statuses) > 0 {
		b.WriteString(labelStyle.Render("Status") + "\n")
		for _, s := range statuses {
			b.WriteString(s + "\n")
		}
	}

	return b.String()
}

func (m DetailModel) ViewGroup(group *export.Group, idleDays int) string {
	if group == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle()

	var b strings.Builder

	b.WriteString(labelStyle.Render("Category") + "\n")
	b.WriteString(valueStyle.Render(group.Name) + "\n\n")

	b.WriteString(labelStyle.Render("Tabs") + "\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", len(group.Tabs))) + "\n\n")

	now := time.Now()
	idle := 0
	for _, rec := range group.Tabs {
		if rec.IdleDays(now) >= idleDays {
			idle++
		}
	}
	if idle > 0 {
		b.WriteString(labelStyle.Render("Idle") + "\n")
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d tabs idle %d+ days", idle, idleDays)) + "\n")
	}

	return b.String()
}

func ageString(t time.Time) string {
	age := time.Since(t)
	days := int(age.Hours() / 24)
	if days == 0 {
		hours := int(age.Hours())
		if hours == 0 {
			return "just now"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	return fmt.Sprintf("%d days ago", days)
}

func wrap(s string, width int) string {
	if width < 10 {
		width = 10
	}
	words := strings.Fields(s)
	var b strings.Builder
	lineLen := 0
	for i, w := range words {
		if lineLen > 0 && lineLen+1+len(w) > width {
			b.WriteString("\n")
			lineLen = 0
		} else if i > 0 {
			b.WriteString(" ")
			lineLen++
		}
		b.WriteString(w)
		lineLen += len(w)
	}
	return b.String()
}
