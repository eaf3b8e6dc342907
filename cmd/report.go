package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/models"
)

var (
	reportFormat string
	reportSprint string
)

var reportCmd = &cobra.Command{
	Use:   "report <backlog|sprint|priority> <project>",
	Short: "Export reports as JSON, CSV, or Markdown",
	Long: `Export a project report:
  backlog   the product backlog in priority order
  sprint    a sprint backlog with assignees (--sprint, default active)
  priority  open items of the active sprint by priority, with developer`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRun(args[0], args[1])
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "Output format: json, csv, markdown")
	reportCmd.Flags().StringVar(&reportSprint, "sprint", "", "Sprint id or name for the sprint report")
	rootCmd.AddCommand(reportCmd)
}

// reportTable is a format-agnostic report: a title, column headers, and rows.
type reportTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func reportRun(kind, ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var t *reportTable
	switch kind {
	case "backlog":
		t, err = backlogReport(ctx, e, actor, ref)
	case "sprint":
		t, err = sprintReport(ctx, e, actor, ref, reportSprint)
	case "priority":
		t, err = priorityReport(ctx, e, actor, ref)
	default:
		return fmt.Errorf("unknown report: %s (use: backlog, sprint, priority)", kind)
	}
	if err != nil {
		return err
	}
	return writeReport(t, reportFormat)
}

func itemRow(w *models.WorkItem) []string {
	estimate := ""
	if w.EstimatedHours != nil {
		estimate = strconv.Itoa(*w.EstimatedHours)
	}
	return []string{strconv.Itoa(w.Number), w.Title, strconv.Itoa(w.Priority), string(w.State), estimate, strconv.Itoa(w.WorkedHours)}
}

func backlogReport(ctx context.Context, e *engine.Engine, actor, ref string) (*reportTable, error) {
	p, err := e.Project(ctx, actor, ref)
	if err != nil {
		return nil, err
	}
	items, err := e.Backlog(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].Number < items[j].Number
	})

	t := &reportTable{
		Title:   "Product Backlog: " + p.Name,
		Headers: []string{"Number", "Title", "Priority", "State", "Estimate", "Worked"},
	}
	for _, w := range items {
		t.Rows = append(t.Rows, itemRow(w))
	}
	return t, nil
}

// assignees maps item ids to the user developing them in a sprint.
func assignees(ctx context.Context, e *engine.Engine, actor, sprintID string) (map[string]string, error) {
	members, err := e.SprintMembers(ctx, actor, sprintID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, member := range members {
		for _, id := range member.ItemIDs {
			m[id] = member.UserID
		}
	}
	return m, nil
}

// sprintReport lists a sprint backlog grouped by state: done, in review,
// in progress, pending, then cancelled.
func sprintReport(ctx context.Context, e *engine.Engine, actor, ref, sprintRef string) (*reportTable, error) {
	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return nil, err
	}
	items, err := e.SprintBacklog(ctx, actor, sp.ID)
	if err != nil {
		return nil, err
	}
	who, err := assignees(ctx, e, actor, sp.ID)
	if err != nil {
		return nil, err
	}

	rank := map[models.WorkItemState]int{
		models.ItemDone:       0,
		models.ItemInReview:   1,
		models.ItemInProgress: 2,
		models.ItemPending:    3,
		models.ItemCancelled:  4,
	}
	sort.SliceStable(items, func(i, j int) bool {
		if rank[items[i].State] != rank[items[j].State] {
			return rank[items[i].State] < rank[items[j].State]
		}
		return items[i].Number < items[j].Number
	})

	t := &reportTable{
		Title:   fmt.Sprintf("Sprint %s (%s .. %s)", sp.Name, sp.StartDate.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout)),
		Headers: []string{"Number", "Title", "Priority", "State", "Estimate", "Worked", "Assignee"},
	}
	for _, w := range items {
		t.Rows = append(t.Rows, append(itemRow(w), who[w.ID]))
	}
	return t, nil
}

// priorityReport lists the open items of the active sprint, highest priority
// first, with their developer.
func priorityReport(ctx context.Context, e *engine.Engine, actor, ref string) (*reportTable, error) {
	sp, err := e.FindSprint(ctx, actor, ref, "")
	if err != nil {
		return nil, err
	}
	items, err := e.SprintBacklog(ctx, actor, sp.ID)
	if err != nil {
		return nil, err
	}
	who, err := assignees(ctx, e, actor, sp.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].Number < items[j].Number
	})

	t := &reportTable{
		Title:   "Sprint " + sp.Name + " by priority",
		Headers: []string{"Priority", "Number", "Title", "State", "Remaining", "Developer"},
	}
	for _, w := range items {
		if !w.State.Open() {
			continue
		}
		remaining := w.Estimate() - w.WorkedHours
		if remaining < 0 {
			remaining = 0
		}
		t.Rows = append(t.Rows, []string{
			"P" + strconv.Itoa(w.Priority),
			strconv.Itoa(w.Number),
			w.Title,
			string(w.State),
			strconv.Itoa(remaining),
			who[w.ID],
		})
	}
	return t, nil
}

func writeReport(t *reportTable, format string) error {
	switch format {
	case "json":
		rows := make([]map[string]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			m := make(map[string]string, len(t.Headers))
			for i, h := range t.Headers {
				m[strings.ToLower(h)] = row[i]
			}
			rows = append(rows, m)
		}
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write(t.Headers)
		for _, row := range t.Rows {
			_ = w.Write(row)
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# %s\n\n", t.Title)
		fmt.Fprintf(ui.Out, "| %s |\n", strings.Join(t.Headers, " | "))
		seps := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			seps[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintf(ui.Out, "|%s|\n", "-"+strings.Join(seps, "-|-")+"-")
		for _, row := range t.Rows {
			fmt.Fprintf(ui.Out, "| %s |\n", strings.Join(row, " | "))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown)", format)
	}
}
