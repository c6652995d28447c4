// ABOUTME: MCP server subcommand
// ABOUTME: Exposes the sync ledger and driver state to MCP clients over stdio
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/fitsync/handlers"
)

// NewMCPServer registers the ledger tools, resources, and prompts.
func NewMCPServer(app *App, version string) *mcp.Server {
	syncHandlers := handlers.NewSyncHandlers(app.Ledger, app.State)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "fitsync",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_synced_activities",
		Description: "List activities synced to the fitness calendar, newest first, optionally filtered by source and recency",
	}, syncHandlers.ListSyncedActivities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_sync_state",
		Description: "Show the last run status of each ingestion driver and the number of synced records per source",
	}, syncHandlers.GetSyncState)

	server.AddResource(&mcp.Resource{
		URI:         handlers.RecordsURI,
		Name:        "Synced records",
		Description: "Every synced activity in the ledger",
		MIMEType:    "application/json",
	}, syncHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: handlers.RecordsURI + "/{source}",
		Name:        "Synced records by source",
		Description: "Synced activities from one source (strava or whoop)",
		MIMEType:    "application/json",
	}, syncHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         handlers.StateURI,
		Name:        "Sync state",
		Description: "Driver status and record counts",
		MIMEType:    "application/json",
	}, syncHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "training-summary",
		Description: "Summarize recent training and sleep from the synced calendar",
		Arguments: []*mcp.PromptArgument{
			{Name: "days", Description: "How many days to look back (default 7)"},
		},
	}, syncHandlers.TrainingSummaryPrompt)

	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, app *App, version string) error {
	app.Logger.Info("starting MCP server")
	return NewMCPServer(app, version).Run(ctx, &mcp.StdioTransport{})
}
