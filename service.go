package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopher2/trunk-decoder/internal/cipher"
	"github.com/gopher2/trunk-decoder/internal/config"
	"github.com/gopher2/trunk-decoder/internal/decoder"
	"github.com/gopher2/trunk-decoder/internal/eventbus"
	"github.com/gopher2/trunk-decoder/internal/geoip"
	"github.com/gopher2/trunk-decoder/internal/hook"
	"github.com/gopher2/trunk-decoder/internal/keytable"
	"github.com/gopher2/trunk-decoder/internal/mcpserver"
	"github.com/gopher2/trunk-decoder/internal/metadata"
	"github.com/gopher2/trunk-decoder/internal/metrics"
	"github.com/gopher2/trunk-decoder/internal/pathslug"
	"github.com/gopher2/trunk-decoder/internal/queue"
	"github.com/gopher2/trunk-decoder/internal/wav"
)

// service wires every component named in SPEC_FULL.md together: the
// key table, job queue, metrics, and the optional MQTT/GeoIP/MCP
// components gated by config.
type service struct {
	cfg     *config.Config
	keys    *cipher.KeyTable
	pool    *queue.Pool
	metrics *metrics.Metrics
	bus     *eventbus.Bus
	geo     *geoip.Service
	paths   *pathslug.Resolver
	mcp     *mcpserver.Server

	httpServer *http.Server
}

func newService(cfg *config.Config) (*service, error) {
	keys := cipher.NewKeyTable()
	if err := keytable.Load(keys, cfg.Keys.Specs); err != nil {
		return nil, err
	}

	var bus *eventbus.Bus
	var err error
	if cfg.MQTT.Enabled {
		bus, err = eventbus.Connect(eventbus.Config{
			Broker:   cfg.MQTT.Broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.TopicPrefix,
			QoS:      cfg.MQTT.QoS,
			Retain:   cfg.MQTT.Retain,
			TLS: eventbus.TLSConfig{
				Enabled:    cfg.MQTT.TLS.Enabled,
				CACert:     cfg.MQTT.TLS.CACert,
				ClientCert: cfg.MQTT.TLS.ClientCert,
				ClientKey:  cfg.MQTT.TLS.ClientKey,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	geo, err := geoip.Open(cfg.GeoIP.DatabasePath)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	svc := &service{
		cfg:     cfg,
		keys:    keys,
		metrics: m,
		bus:     bus,
		geo:     geo,
		paths:   pathslug.New(cfg.Output.Root),
	}

	svc.pool = queue.NewPool(
		cfg.Queue.Workers,
		cfg.Queue.Capacity,
		cfg.JobTimeout(),
		cfg.JobTTL(),
		func() *decoder.Pipeline { return decoder.New(keys) },
		svc.runJob,
	)
	svc.pool.Tracker()

	if cfg.MCP.Enabled {
		svc.mcp = mcpserver.New("p25-ingest", "1.0.0", svc.pool.Tracker(), svc.pool.Tracker())
	}

	return svc, nil
}

func (s *service) Close() {
	s.pool.Stop()
	s.bus.Close()
	s.geo.Close()
}

// outputStem returns the basename (without extension) a job's WAV and
// JSON sidecar are written under: the uploaded file's own name when
// the caller supplied one via the p25_file part's filename, falling
// back to the job id for an upload that omitted it. Batch mode does
// not use it; decodeBatchFile names outputs after the capture file. Submitting via job.ID alone would put every S4-style dated
// artifact under the right directory but the wrong filename.
func outputStem(job *queue.Job) string {
	if job.OriginalFilename == "" {
		return job.ID
	}
	base := filepath.Base(job.OriginalFilename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// inputFileName returns the input_file value the metadata sidecar
// records: the caller's original filename if one was supplied,
// otherwise the spooled temp file's own basename. Either way it is
// always just a basename, never a full path — the internal
// .incoming/ spool directory must never appear in the sidecar.
func inputFileName(job *queue.Job) string {
	if job.OriginalFilename != "" {
		return filepath.Base(job.OriginalFilename)
	}
	return filepath.Base(job.InputPath)
}

// runJob is the queue.Handler every worker calls with its long-lived
// decoder.Pipeline. It decodes the capture, writes the WAV and
// metadata sidecar, runs the post-processing hook, and reports the
// outcome through metrics and the event bus.
func (s *service) runJob(ctx context.Context, pipeline *decoder.Pipeline, job *queue.Job) (jobErr error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveJobFinished(jobErr == nil, time.Since(start).Seconds())
		if jobErr != nil {
			s.bus.Publish(eventbus.Event{JobID: job.ID, Type: "failed", Timestamp: time.Now(), Error: jobErr.Error()})
		}
	}()

	s.bus.Publish(eventbus.Event{JobID: job.ID, Type: "processing", Timestamp: time.Now()})

	in, err := os.Open(job.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	shortName, startTime, hasDated := metadata.DatedFields(job.MetadataBlob)
	paths, err := s.paths.Resolve(outputStem(job), shortName, startTime, hasDated)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	out, err := wav.Create(paths.WAV)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	meta, decodeErr := pipeline.Decode(ctx, in, out)
	closeErr := out.Close()
	if decodeErr != nil {
		return fmt.Errorf("decode: %w", decodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("finalize wav: %w", closeErr)
	}

	fields := metadata.DecoderFields{
		DecoderSource:     "p25-ingest",
		InputFile:         inputFileName(job),
		P25Frames:         meta.TotalFrames,
		VoiceFrames:       meta.VoiceFrames,
		CallLengthSeconds: meta.CallLengthSeconds,
		AudioType:         meta.AudioType,
		NAC:               int(meta.NAC),
		Encrypted:         meta.HasEncryptedFrames,
	}
	if s.geo.Enabled() && job.ClientIP != "" && !metadata.HasKey(job.MetadataBlob, "origin_country") {
		if res, err := s.geo.Lookup(job.ClientIP); err == nil {
			fields.OriginCountry = res.CountryName
			fields.OriginCountryCode = res.CountryCode
		}
	}
	merged, err := metadata.Merge(job.MetadataBlob, fields)
	if err != nil {
		return fmt.Errorf("merge metadata: %w", err)
	}
	if err := os.WriteFile(paths.JSON, []byte(merged), 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	s.metrics.ObserveCall(meta.TotalFrames, meta.VoiceFrames, meta.HasEncryptedFrames)

	scriptPath := job.HookScriptPath
	if scriptPath == "" {
		scriptPath = s.cfg.Output.HookScriptPath
	}
	hook.Run(scriptPath, paths.WAV, paths.JSON)

	s.bus.Publish(eventbus.Event{
		JobID: job.ID, Type: "completed", Timestamp: time.Now(),
		NAC: int(meta.NAC), Encrypted: meta.HasEncryptedFrames,
	})
	return nil
}

// Run starts the HTTP service (and, if configured, the MCP server)
// and blocks until the main HTTP listener exits.
func (s *service) Run() error {
	s.startMCP()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      mux,
		ReadTimeout:  s.cfg.RequestTimeout(),
		WriteTimeout: s.cfg.RequestTimeout(),
	}

	if s.cfg.Server.TLSEnabled() {
		log.Printf("p25-ingest: listening on %s (tls)", s.cfg.Server.Listen)
		return s.httpServer.ListenAndServeTLS(s.cfg.Server.TLSCertPath, s.cfg.Server.TLSKeyPath)
	}
	log.Printf("p25-ingest: listening on %s", s.cfg.Server.Listen)
	return s.httpServer.ListenAndServe()
}

// startMCP launches the optional C16 query server on its configured
// transport. Over stdio it runs in the foreground goroutine pool
// only when nothing else needs stdin/stdout, so it is started in the
// background here regardless of transport; an http transport gets
// its own listener, separate from the main service mux, since
// mcp.listen is independent configuration.
func (s *service) startMCP() {
	if s.mcp == nil {
		return
	}
	switch s.cfg.MCP.Transport {
	case "http":
		go func() {
			log.Printf("p25-ingest: mcp server listening on %s", s.cfg.MCP.Listen)
			srv := &http.Server{Addr: s.cfg.MCP.Listen, Handler: http.HandlerFunc(s.mcp.ServeHTTP)}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("p25-ingest: mcp http server exited: %v", err)
			}
		}()
	default:
		go func() {
			if err := s.mcp.ServeStdio(); err != nil {
				log.Printf("p25-ingest: mcp stdio server exited: %v", err)
			}
		}()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: failed to encode response: %v", err)
	}
}
