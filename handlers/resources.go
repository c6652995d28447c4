// ABOUTME: MCP resources over the sync ledger
// ABOUTME: Read-only fitsync:// URIs for records and driver state
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/fitsync/models"
)

// Resource URIs.
const (
	RecordsURI = "fitsync://records"
	StateURI   = "fitsync://state"
)

const resourceLimit = 500

// ReadResource serves fitsync://records, fitsync://records/<source> and fitsync://state.
func (h *SyncHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "fitsync://") {
		return nil, fmt.Errorf("invalid URI scheme: expected fitsync://")
	}
	parts := strings.Split(strings.TrimPrefix(uri, "fitsync://"), "/")

	var payload any
	switch parts[0] {
	case "records":
		filter := models.ListFilter{Limit: resourceLimit}
		if len(parts) > 1 && parts[1] != "" {
			source, err := models.ParseSource(parts[1])
			if err != nil {
				return nil, err
			}
			filter.Source = source
		}
		records, err := h.ledger.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records: %w", err)
		}
		out := make([]SyncRecordOutput, len(records))
		for i := range records {
			out[i] = recordToOutput(&records[i])
		}
		payload = out
	case "state":
		_, out, err := h.GetSyncState(ctx, nil, GetSyncStateInput{})
		if err != nil {
			return nil, err
		}
		payload = out
	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{URI: uri, MIMEType: "application/json", Text: string(data)},
	}}, nil
}
