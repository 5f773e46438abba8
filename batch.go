package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopher2/trunk-decoder/internal/decoder"
	"github.com/gopher2/trunk-decoder/internal/eventbus"
	"github.com/gopher2/trunk-decoder/internal/hook"
	"github.com/gopher2/trunk-decoder/internal/metadata"
	"github.com/gopher2/trunk-decoder/internal/wav"
)

// runBatch walks batchDir and decodes every file whose extension
// matches ext directly through one decoder.Pipeline, synchronously —
// batch mode bypasses the job queue entirely, per spec.md §4's
// control-flow split between the two operating modes ("the CLI
// enumerates files and calls C6 directly, synchronously"). One file
// failing does not stop the walk; it is logged and counted, and a
// nonzero count fails the run after every file has been attempted.
func runBatch(svc *service, batchDir, ext string) error {
	pipeline := decoder.New(svc.keys)

	var attempted, failed int
	walkErr := filepath.WalkDir(batchDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		attempted++
		if err := svc.decodeBatchFile(pipeline, path); err != nil {
			log.Printf("batch: %s: %v", path, err)
			failed++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", batchDir, walkErr)
	}

	log.Printf("batch: %d file(s) attempted, %d failed", attempted, failed)
	if failed > 0 {
		return fmt.Errorf("batch: %d of %d file(s) failed to decode", failed, attempted)
	}
	return nil
}

// decodeBatchFile runs one capture through pipeline and writes its
// WAV and JSON sidecar, following the same output-layout and
// metadata rules as the HTTP path's runJob, minus caller-supplied
// metadata — batch mode has no uploader to supply it.
func (s *service) decodeBatchFile(pipeline *decoder.Pipeline, path string) (jobErr error) {
	jobID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s.bus.Publish(eventbus.Event{JobID: jobID, Type: "processing", Timestamp: time.Now()})
	defer func() {
		if jobErr != nil {
			s.bus.Publish(eventbus.Event{JobID: jobID, Type: "failed", Timestamp: time.Now(), Error: jobErr.Error()})
		}
	}()

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer in.Close()

	paths, err := s.paths.Resolve(jobID, "", time.Time{}, false)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	out, err := wav.Create(paths.WAV)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	meta, decodeErr := pipeline.Decode(context.Background(), in, out)
	closeErr := out.Close()
	if decodeErr != nil {
		return fmt.Errorf("decode: %w", decodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("finalize wav: %w", closeErr)
	}

	fields := metadata.DecoderFields{
		DecoderSource:     "p25-ingest-batch",
		InputFile:         filepath.Base(path),
		P25Frames:         meta.TotalFrames,
		VoiceFrames:       meta.VoiceFrames,
		CallLengthSeconds: meta.CallLengthSeconds,
		AudioType:         meta.AudioType,
		NAC:               int(meta.NAC),
		Encrypted:         meta.HasEncryptedFrames,
	}
	merged, err := metadata.Merge("", fields)
	if err != nil {
		return fmt.Errorf("merge metadata: %w", err)
	}
	if err := os.WriteFile(paths.JSON, []byte(merged), 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	s.metrics.ObserveCall(meta.TotalFrames, meta.VoiceFrames, meta.HasEncryptedFrames)
	hook.Run(s.cfg.Output.HookScriptPath, paths.WAV, paths.JSON)

	s.bus.Publish(eventbus.Event{
		JobID: jobID, Type: "completed", Timestamp: time.Now(),
		NAC: int(meta.NAC), Encrypted: meta.HasEncryptedFrames,
	})
	return nil
}
