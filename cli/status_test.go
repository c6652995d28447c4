package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/fitsync/models"
)

func TestRenderStatusPlain(t *testing.T) {
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	msg := "strava not connected"
	report := statusReport{
		Connected: map[string]bool{"google": true},
		States: []models.SyncState{
			{Service: models.ServiceStravaBackfill, Status: models.StatusError, ErrorMessage: &msg},
		},
		Counts: map[models.Source]int{models.SourceStrava: 4},
		Records: []models.SyncRecord{
			{Source: models.SourceStrava, SourceID: "12345", ActivityType: "Run", ActivityStart: &start, SyncedAt: start},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, report, false))
	out := buf.String()

	assert.Contains(t, out, "CONNECTIONS")
	assert.Contains(t, out, "not connected")
	assert.Contains(t, out, "strava-backfill")
	assert.Contains(t, out, msg)
	assert.Contains(t, out, "RECORDS (strava 4, whoop 0)")
	assert.Contains(t, out, "12345")
	assert.NotContains(t, out, "\x1b[", "plain output must not carry ANSI escapes")

	lines := strings.Split(out, "\n")
	var googleLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "google") {
			googleLine = l
		}
	}
	assert.Contains(t, googleLine, "connected")
	assert.NotContains(t, googleLine, "not connected")
}

func TestRenderStatusStyled(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, statusReport{Connected: map[string]bool{}}, true))
	assert.Contains(t, buf.String(), "SERVICE")
	assert.Contains(t, buf.String(), "whoop")
}

func TestMCPServerTools(t *testing.T) {
	app := setupApp(t, testConfig())
	ctx := context.Background()

	require.NoError(t, app.Ledger.Insert(ctx, &models.SyncRecord{
		Source: models.SourceStrava, SourceID: "12345", ActivityType: "Run", CalendarEventID: "evt-1",
	}))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewMCPServer(app, "test").Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_synced_activities", "get_sync_state"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_synced_activities",
		Arguments: map[string]any{"source": "strava"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "evt-1")
}
