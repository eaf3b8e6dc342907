// Package board groups a sprint backlog into kanban columns and renders them
// side by side for the terminal.
package board

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/scrum/internal/models"
)

// Card is one work item on the board.
type Card struct {
	ItemID   string
	Number   int
	Title    string
	Priority int
	Estimate *int
	Worked   int
	Assignee string
}

// Column holds the cards in one pipeline state, highest priority first.
type Column struct {
	State models.WorkItemState
	Cards []Card
}

// Board is the kanban view of a sprint.
type Board struct {
	SprintID   string
	SprintName string
	Columns    []Column
}

// Build groups items into one column per pipeline state. assignees maps an
// item id to the display name of its developer.
func Build(sp *models.Sprint, items []*models.WorkItem, assignees map[string]string) *Board {
	byState := make(map[models.WorkItemState][]Card)
	for _, w := range items {
		byState[w.State] = append(byState[w.State], Card{
			ItemID:   w.ID,
			Number:   w.Number,
			Title:    w.Title,
			Priority: w.Priority,
			Estimate: w.EstimatedHours,
			Worked:   w.WorkedHours,
			Assignee: assignees[w.ID],
		})
	}

	b := &Board{SprintID: sp.ID, SprintName: sp.Name}
	for _, st := range models.WorkItemStates() {
		cards := byState[st]
		sort.SliceStable(cards, func(i, j int) bool {
			if cards[i].Priority != cards[j].Priority {
				return cards[i].Priority < cards[j].Priority
			}
			return cards[i].Number < cards[j].Number
		})
		b.Columns = append(b.Columns, Column{State: st, Cards: cards})
	}
	return b
}

// Count returns the number of cards in state st.
func (b *Board) Count(st models.WorkItemState) int {
	for _, c := range b.Columns {
		if c.State == st {
			return len(c.Cards)
		}
	}
	return 0
}

var stateColors = map[models.WorkItemState]lipgloss.Color{
	models.ItemPending:    lipgloss.Color("245"),
	models.ItemInProgress: lipgloss.Color("33"),
	models.ItemInReview:   lipgloss.Color("214"),
	models.ItemDone:       lipgloss.Color("42"),
	models.ItemCancelled:  lipgloss.Color("160"),
}

// Render draws the board as bordered columns of the given width each.
func (b *Board) Render(columnWidth int) string {
	if columnWidth < 16 {
		columnWidth = 16
	}
	titleStyle := lipgloss.NewStyle().Bold(true)

	columns := make([]string, 0, len(b.Columns))
	for _, col := range b.Columns {
		color := stateColors[col.State]
		header := lipgloss.NewStyle().Bold(true).Foreground(color).
			Render(fmt.Sprintf("%s (%d)", strings.ReplaceAll(string(col.State), "_", " "), len(col.Cards)))

		lines := []string{header}
		for _, c := range col.Cards {
			lines = append(lines, titleStyle.Render(fmt.Sprintf("#%d %s", c.Number, c.Title)), cardDetail(c))
		}

		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1).
			Width(columnWidth)
		columns = append(columns, style.Render(strings.Join(lines, "\n")))
	}

	heading := titleStyle.Render(b.SprintName)
	return lipgloss.JoinVertical(lipgloss.Left, heading, lipgloss.JoinHorizontal(lipgloss.Top, columns...))
}

func cardDetail(c Card) string {
	estimate := "?"
	if c.Estimate != nil {
		estimate = fmt.Sprintf("%d", *c.Estimate)
	}
	detail := fmt.Sprintf("P%d %d/%sh", c.Priority, c.Worked, estimate)
	if c.Assignee != "" {
		detail += " " + c.Assignee
	}
	return lipgloss.NewStyle().Faint(true).Render(detail)
}
