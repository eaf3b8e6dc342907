package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/scrum/internal/burndown"
	"github.com/joescharf/scrum/internal/models"
)

// Client wraps the Anthropic API for sprint review drafting.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// ReviewInput is the sprint data a review draft is written from.
type ReviewInput struct {
	Project   string
	Sprint    string
	Goal      string
	StartDate string
	EndDate   string
	Cost      int
	Remaining int
	Items     map[models.WorkItemState][]string // item titles by state
}

// NewReviewInput summarizes a closed or active sprint for drafting. Items
// that rolled back to the product backlog are not part of items and show up
// only through the burndown.
func NewReviewInput(projectName string, sp *models.Sprint, items []*models.WorkItem, series burndown.Series) ReviewInput {
	in := ReviewInput{
		Project:   projectName,
		Sprint:    sp.Name,
		Goal:      sp.Description,
		StartDate: sp.StartDate.Format(models.DateLayout),
		EndDate:   sp.EndDate.Format(models.DateLayout),
		Cost:      series.Cost,
		Remaining: series.Cost,
		Items:     make(map[models.WorkItemState][]string),
	}
	if n := len(series.Actual); n > 0 {
		in.Remaining = series.Actual[n-1]
	}
	for _, w := range items {
		in.Items[w.State] = append(in.Items[w.State], fmt.Sprintf("#%d %s", w.Number, w.Title))
	}
	return in
}

// ReviewDraft is a proposed sprint review.
type ReviewDraft struct {
	Summary  string   `json:"summary"`
	WentWell []string `json:"went_well"`
	Improve  []string `json:"improve"`
}

// Text renders the draft as the plain text stored on the sprint.
func (d *ReviewDraft) Text() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(d.Summary))
	sb.WriteString("\n")
	if len(d.WentWell) > 0 {
		sb.WriteString("\nWent well:\n")
		for _, s := range d.WentWell {
			sb.WriteString("- " + s + "\n")
		}
	}
	if len(d.Improve) > 0 {
		sb.WriteString("\nTo improve:\n")
		for _, s := range d.Improve {
			sb.WriteString("- " + s + "\n")
		}
	}
	return sb.String()
}

// buildReviewPrompt constructs the system and user prompts for a sprint review.
func buildReviewPrompt(in ReviewInput) (system string, user string) {
	system = `You draft sprint reviews for a Scrum team. Given a sprint's dates, goal, planned hours, remaining hours, and its work items grouped by state, return a JSON object with exactly three fields:

- "summary": 2-4 sentences describing what the sprint delivered against its goal
- "went_well": a list of short statements about what worked
- "improve": a list of short, actionable statements about what to change next sprint

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Only mention work items that appear in the input
- Remaining hours above zero mean the planned work was not burned down; say so plainly
- Keep every list entry under 20 words`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", in.Project)
	fmt.Fprintf(&sb, "Sprint: %s (%s to %s)\n", in.Sprint, in.StartDate, in.EndDate)
	if in.Goal != "" {
		fmt.Fprintf(&sb, "Goal: %s\n", in.Goal)
	}
	fmt.Fprintf(&sb, "Planned hours: %d\nRemaining hours: %d\n", in.Cost, in.Remaining)
	for _, st := range models.WorkItemStates() {
		titles := in.Items[st]
		if len(titles) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", st)
		for _, t := range titles {
			sb.WriteString("- " + t + "\n")
		}
	}
	user = sb.String()
	return
}

// DraftReview asks the LLM for a sprint review draft.
func (c *Client) DraftReview(ctx context.Context, in ReviewInput) (*ReviewDraft, error) {
	systemPrompt, userPrompt := buildReviewPrompt(in)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	text = stripFence(text)
	var draft ReviewDraft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return &draft, nil
}

// stripFence removes a markdown code fence around a response.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
