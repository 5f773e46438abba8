package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveJobQueuedIncrementsCounter(t *testing.T) {
	m := New()
	m.ObserveJobQueued()
	m.ObserveJobQueued()
	if got := testutil.ToFloat64(m.jobsQueued); got != 2 {
		t.Fatalf("jobsQueued = %v, want 2", got)
	}
}

func TestObserveJobFinishedRoutesToCompletedOrFailed(t *testing.T) {
	m := New()
	m.ObserveJobFinished(true, 1.5)
	m.ObserveJobFinished(false, 0.5)

	if got := testutil.ToFloat64(m.jobsCompleted); got != 1 {
		t.Fatalf("jobsCompleted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.jobsFailed); got != 1 {
		t.Fatalf("jobsFailed = %v, want 1", got)
	}
}

func TestSetPoolGaugesReflectsLatestSnapshot(t *testing.T) {
	m := New()
	m.SetPoolGauges(3, 2, 4)

	if got := testutil.ToFloat64(m.queueDepth); got != 3 {
		t.Fatalf("queueDepth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.activeWorkers); got != 2 {
		t.Fatalf("activeWorkers = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.totalWorkers); got != 4 {
		t.Fatalf("totalWorkers = %v, want 4", got)
	}
}

func TestObserveCallAccumulatesFramesAndEncryptedCount(t *testing.T) {
	m := New()
	m.ObserveCall(18, 18, false)
	m.ObserveCall(18, 9, true)

	if got := testutil.ToFloat64(m.voiceFramesTotal); got != 27 {
		t.Fatalf("voiceFramesTotal = %v, want 27", got)
	}
	if got := testutil.ToFloat64(m.encryptedCalls); got != 1 {
		t.Fatalf("encryptedCalls = %v, want 1", got)
	}
}

func TestHandlerServesPlaintextMetrics(t *testing.T) {
	m := New()
	m.ObserveJobQueued()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "p25_jobs_queued_total") {
		t.Fatal("expected scrape output to contain the counter's metric name")
	}
}
