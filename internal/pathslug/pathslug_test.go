package pathslug

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestSlugPreservesCaseAndCollapsesNonAlphanumeric(t *testing.T) {
	got := Slug("King County Fire & EMS")
	want := "King_County_Fire_EMS"
	if got != want {
		t.Fatalf("slug = %q, want %q", got, want)
	}
}

func TestSlugPreservesUppercaseSystemName(t *testing.T) {
	got := Slug("SYS1")
	if got != "SYS1" {
		t.Fatalf("slug = %q, want %q (case must be preserved verbatim)", got, "SYS1")
	}
}

func TestSlugStripsPathTraversalAttempts(t *testing.T) {
	got := Slug("../../etc/passwd")
	for _, bad := range []string{"..", "/", "\\"} {
		if containsSubstring(got, bad) {
			t.Fatalf("slug %q still contains %q", got, bad)
		}
	}
}

func containsSubstring(s, sub string) bool {
	return len(sub) > 0 && len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestSlugNormalizesUnicodeToNFC(t *testing.T) {
	decomposed := "Cafe\u0301" // "e" followed by a combining acute accent, NFD form
	got := Slug(decomposed)
	want := "Caf\u00e9"
	if got != want {
		t.Fatalf("slug = %q, want %q (NFC-normalized)", got, want)
	}
}

func TestResolveWithDatedMetadataBuildsNestedLayout(t *testing.T) {
	root := t.TempDir()
	r := New(root)

	start := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	paths, err := r.Resolve("call123", "King County Fire", start, true)
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(root, "King_County_Fire", "2026", "03", "07")
	if paths.Dir != want {
		t.Fatalf("dir = %q, want %q", paths.Dir, want)
	}
	if info, err := os.Stat(paths.Dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory %q to exist", paths.Dir)
	}
	if paths.WAV != filepath.Join(want, "call123.wav") {
		t.Fatalf("wav path = %q", paths.WAV)
	}
}

func TestResolveWithoutDatedMetadataFallsBackToFlatLayout(t *testing.T) {
	root := t.TempDir()
	r := New(root)

	paths, err := r.Resolve("call123", "", time.Time{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if paths.Dir != root {
		t.Fatalf("dir = %q, want flat root %q", paths.Dir, root)
	}
}

func TestResolveConcurrentCallsForSameDirDoNotRace(t *testing.T) {
	root := t.TempDir()
	r := New(root)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := r.Resolve("call", "same county", start, true)
			errs <- err
			_ = n
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
}
