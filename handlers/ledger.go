// ABOUTME: Sync ledger MCP tool handlers
// ABOUTME: Implements list_synced_activities and get_sync_state tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/fitsync/models"
)

// LedgerReader is the read side of either ledger backend.
type LedgerReader interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.SyncRecord, error)
	Count(ctx context.Context) (map[models.Source]int, error)
}

type StateReader interface {
	All(ctx context.Context) ([]models.SyncState, error)
}

type SyncHandlers struct {
	ledger LedgerReader
	state  StateReader
	now    func() time.Time
}

func NewSyncHandlers(ledger LedgerReader, state StateReader) *SyncHandlers {
	return &SyncHandlers{ledger: ledger, state: state, now: time.Now}
}

type ListSyncedActivitiesInput struct {
	Source    string `json:"source,omitempty" jsonschema:"Only records from this source (strava or whoop)"`
	SinceDays int    `json:"since_days,omitempty" jsonschema:"Only records synced in the last N days"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 20)"`
}

type SyncRecordOutput struct {
	Source          string `json:"source"`
	SourceID        string `json:"source_id"`
	ActivityType    string `json:"activity_type"`
	CalendarEventID string `json:"calendar_event_id"`
	ActivityStart   string `json:"activity_start,omitempty"`
	ActivityEnd     string `json:"activity_end,omitempty"`
	SyncedAt        string `json:"synced_at"`
}

type ListSyncedActivitiesOutput struct {
	Records []SyncRecordOutput `json:"records"`
	Count   int                `json:"count"`
}

func (h *SyncHandlers) ListSyncedActivities(ctx context.Context, _ *mcp.CallToolRequest, input ListSyncedActivitiesInput) (*mcp.CallToolResult, ListSyncedActivitiesOutput, error) {
	filter := models.ListFilter{Limit: input.Limit}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if input.Source != "" {
		source, err := models.ParseSource(input.Source)
		if err != nil {
			return nil, ListSyncedActivitiesOutput{}, err
		}
		filter.Source = source
	}
	if input.SinceDays < 0 {
		return nil, ListSyncedActivitiesOutput{}, fmt.Errorf("since_days must not be negative")
	}
	if input.SinceDays > 0 {
		since := h.now().AddDate(0, 0, -input.SinceDays)
		filter.Since = &since
	}

	records, err := h.ledger.List(ctx, filter)
	if err != nil {
		return nil, ListSyncedActivitiesOutput{}, fmt.Errorf("failed to list synced activities: %w", err)
	}

	out := ListSyncedActivitiesOutput{Records: make([]SyncRecordOutput, len(records)), Count: len(records)}
	for i := range records {
		out.Records[i] = recordToOutput(&records[i])
	}
	return nil, out, nil
}

type GetSyncStateInput struct {
	Service string `json:"service,omitempty" jsonschema:"Only this driver (whoop-poll, strava-backfill, strava-webhook)"`
}

type SyncStateOutput struct {
	Service      string `json:"service"`
	Status       string `json:"status"`
	LastSyncTime string `json:"last_sync_time,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	UpdatedAt    string `json:"updated_at"`
}

type GetSyncStateOutput struct {
	States  []SyncStateOutput `json:"states"`
	Records map[string]int    `json:"records"`
}

func (h *SyncHandlers) GetSyncState(ctx context.Context, _ *mcp.CallToolRequest, input GetSyncStateInput) (*mcp.CallToolResult, GetSyncStateOutput, error) {
	states, err := h.state.All(ctx)
	if err != nil {
		return nil, GetSyncStateOutput{}, fmt.Errorf("failed to read sync state: %w", err)
	}
	counts, err := h.ledger.Count(ctx)
	if err != nil {
		return nil, GetSyncStateOutput{}, fmt.Errorf("failed to count records: %w", err)
	}

	out := GetSyncStateOutput{States: []SyncStateOutput{}, Records: make(map[string]int, len(counts))}
	for _, s := range states {
		if input.Service != "" && s.Service != input.Service {
			continue
		}
		out.States = append(out.States, stateToOutput(s))
	}
	for source, n := range counts {
		out.Records[string(source)] = n
	}
	return nil, out, nil
}

func recordToOutput(rec *models.SyncRecord) SyncRecordOutput {
	out := SyncRecordOutput{
		Source:          string(rec.Source),
		SourceID:        rec.SourceID,
		ActivityType:    rec.ActivityType,
		CalendarEventID: rec.CalendarEventID,
		SyncedAt:        rec.SyncedAt.Format(time.RFC3339),
	}
	if rec.ActivityStart != nil {
		out.ActivityStart = rec.ActivityStart.Format(time.RFC3339)
	}
	if rec.ActivityEnd != nil {
		out.ActivityEnd = rec.ActivityEnd.Format(time.RFC3339)
	}
	return out
}

func stateToOutput(s models.SyncState) SyncStateOutput {
	out := SyncStateOutput{
		Service:   s.Service,
		Status:    s.Status,
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if s.LastSyncTime != nil {
		out.LastSyncTime = s.LastSyncTime.Format(time.RFC3339)
	}
	if s.ErrorMessage != nil {
		out.ErrorMessage = *s.ErrorMessage
	}
	return out
}
