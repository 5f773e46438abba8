package mcpserver

import (
	"testing"
	"time"

	"github.com/gopher2/trunk-decoder/internal/queue"
)

func TestJobSummaryFormatsTimestampsAndOmitsZeroCompletedAt(t *testing.T) {
	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j := queue.Job{ID: "abc", Status: queue.StatusQueued, ReceivedAt: received}

	v := jobSummary(j)
	if v.ID != "abc" {
		t.Fatalf("id = %q, want abc", v.ID)
	}
	if v.Status != "queued" {
		t.Fatalf("status = %q, want queued", v.Status)
	}
	if v.ReceivedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("received_at = %q", v.ReceivedAt)
	}
	if v.CompletedAt != "" {
		t.Fatalf("completed_at = %q, want empty for a job that hasn't completed", v.CompletedAt)
	}
}

func TestJobSummaryIncludesCompletedAtAndErrorReasonWhenSet(t *testing.T) {
	completed := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)
	j := queue.Job{
		ID:          "xyz",
		Status:      queue.StatusFailed,
		CompletedAt: completed,
		ErrorReason: "timeout",
	}

	v := jobSummary(j)
	if v.CompletedAt != "2026-01-02T03:05:00Z" {
		t.Fatalf("completed_at = %q", v.CompletedAt)
	}
	if v.ErrorReason != "timeout" {
		t.Fatalf("error_reason = %q, want timeout", v.ErrorReason)
	}
}
