package queue

import (
	"testing"
	"time"
)

func TestTrackerRecentOrdersMostRecentFirstAndRespectsLimit(t *testing.T) {
	tr := NewTracker(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tr.put(Job{ID: string(rune('a' + i)), ReceivedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	recent := tr.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].ID != "e" || recent[1].ID != "d" || recent[2].ID != "c" {
		t.Fatalf("recent order = %v, want [e d c]", []string{recent[0].ID, recent[1].ID, recent[2].ID})
	}
}

func TestTrackerRecentWithLimitLargerThanJobCountReturnsAll(t *testing.T) {
	tr := NewTracker(0)
	tr.put(Job{ID: "only", ReceivedAt: time.Now()})

	recent := tr.Recent(10)
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
}
