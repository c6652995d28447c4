// ABOUTME: Tests for sync data models
// ABOUTME: Validates source parsing, record keys, and event span parsing
package models

import (
	"testing"
	"time"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"strava", SourceStrava, false},
		{" Whoop ", SourceWhoop, false},
		{"garmin", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAuthoritativeSource(t *testing.T) {
	if !SourceStrava.IsAuthoritative() {
		t.Error("expected strava to be authoritative")
	}
	if SourceWhoop.IsAuthoritative() {
		t.Error("expected whoop to be non-authoritative")
	}
}

func TestRecordKey(t *testing.T) {
	rec := &SyncRecord{Source: SourceWhoop, SourceID: SleepSourceID("42")}
	if got := rec.Key(); got != "whoop/sleep-42" {
		t.Errorf("expected whoop/sleep-42, got %s", got)
	}
}

func TestFormattedEventSpan(t *testing.T) {
	ev := FormattedEvent{
		Start: EventTime{DateTime: "2024-01-15T07:30:00Z", TimeZone: "UTC"},
		End:   EventTime{DateTime: "2024-01-15T08:23:20Z", TimeZone: "UTC"},
	}

	start, end, ok := ev.Span()
	if !ok {
		t.Fatal("expected span to parse")
	}
	if end.Sub(start) != 3200*time.Second {
		t.Errorf("expected 3200s span, got %v", end.Sub(start))
	}
}

func TestFormattedEventSpanUnparseable(t *testing.T) {
	ev := FormattedEvent{
		Start: EventTime{DateTime: "yesterday morning"},
		End:   EventTime{DateTime: "2024-01-15T08:23:20Z"},
	}
	if _, _, ok := ev.Span(); ok {
		t.Error("expected unparseable start to yield no span")
	}

	reversed := FormattedEvent{
		Start: EventTime{DateTime: "2024-01-15T09:00:00Z"},
		End:   EventTime{DateTime: "2024-01-15T08:00:00Z"},
	}
	if _, _, ok := reversed.Span(); ok {
		t.Error("expected reversed span to be rejected")
	}
}
