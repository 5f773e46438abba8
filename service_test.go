package main

import (
	"testing"

	"github.com/gopher2/trunk-decoder/internal/queue"
)

func TestOutputStemUsesOriginalFilenameStemWhenPresent(t *testing.T) {
	job := &queue.Job{ID: "abc123", OriginalFilename: "SYS1_20231114_call.bin"}
	if got := outputStem(job); got != "SYS1_20231114_call" {
		t.Fatalf("outputStem = %q, want %q", got, "SYS1_20231114_call")
	}
}

func TestOutputStemFallsBackToJobIDWithoutOriginalFilename(t *testing.T) {
	job := &queue.Job{ID: "abc123"}
	if got := outputStem(job); got != "abc123" {
		t.Fatalf("outputStem = %q, want %q", got, "abc123")
	}
}

func TestOutputStemStripsDirectoryFromOriginalFilename(t *testing.T) {
	job := &queue.Job{ID: "abc123", OriginalFilename: "../../etc/passwd.bin"}
	if got := outputStem(job); got != "passwd" {
		t.Fatalf("outputStem = %q, want %q", got, "passwd")
	}
}

func TestInputFileNamePrefersOriginalFilenameBasename(t *testing.T) {
	job := &queue.Job{InputPath: "/data/.incoming/upload-987.bin", OriginalFilename: "call.bin"}
	if got := inputFileName(job); got != "call.bin" {
		t.Fatalf("inputFileName = %q, want %q", got, "call.bin")
	}
}

func TestInputFileNameFallsBackToSpooledBasename(t *testing.T) {
	job := &queue.Job{InputPath: "/data/.incoming/upload-987.bin"}
	if got := inputFileName(job); got != "upload-987.bin" {
		t.Fatalf("inputFileName = %q, want %q", got, "upload-987.bin")
	}
}
