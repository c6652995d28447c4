// ABOUTME: MCP prompt templates for reviewing synced training
// ABOUTME: Builds a summary request from recent ledger records
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/fitsync/models"
)

// TrainingSummaryPrompt asks the model to review recently synced activity.
func (h *SyncHandlers) TrainingSummaryPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	days := 7
	if request != nil && request.Params != nil {
		if raw, ok := request.Params.Arguments["days"]; ok && raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("days must be a positive integer")
			}
			days = n
		}
	}

	since := h.now().AddDate(0, 0, -days)
	records, err := h.ledger.List(ctx, models.ListFilter{Since: &since, Limit: resourceLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Activities synced to the fitness calendar in the last %d days:\n\n", days)
	if len(records) == 0 {
		text.WriteString("(none)\n")
	}
	for _, rec := range records {
		start := "unknown start"
		if rec.ActivityStart != nil {
			start = rec.ActivityStart.Format(time.RFC3339)
		}
		duration := ""
		if rec.HasSpan() {
			duration = fmt.Sprintf(", %s", rec.ActivityEnd.Sub(*rec.ActivityStart).Round(time.Minute))
		}
		fmt.Fprintf(&text, "- %s %s (%s)%s\n", start, rec.ActivityType, rec.Source, duration)
	}
	text.WriteString("\nPlease summarize:")
	text.WriteString("\n1. Training volume and how it was distributed across activity types")
	text.WriteString("\n2. Sleep patterns, if sleep records are present")
	text.WriteString("\n3. Anything that looks like a gap or an unusual spike")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Training summary for the last %d days", days),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text.String()}},
		},
	}, nil
}
