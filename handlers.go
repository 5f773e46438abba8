package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/gopher2/trunk-decoder/internal/eventbus"
	"github.com/gopher2/trunk-decoder/internal/keytable"
	"github.com/gopher2/trunk-decoder/internal/queue"
)

// registerRoutes wires the routes spec.md §4.9/§6 requires plus the
// ambient additions SPEC_FULL.md §6 names: metrics exposition, the
// live status WebSocket, and admin key insertion.
func (s *service) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/decode", s.decodeHandler)
	mux.Handle("GET /api/v1/status", gzipMiddleware(http.HandlerFunc(s.statusHandler)))
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.jobStatusHandler)
	mux.HandleFunc("GET /api/v1/jobs/{id}/stream", s.jobStreamHandler)
	mux.HandleFunc("POST /api/v1/admin/keys", s.adminKeysHandler)
	mux.Handle("GET /metrics", gzipMiddleware(s.metrics.Handler()))
}

// decodeHandler implements C9's POST /api/v1/decode. It never
// decodes synchronously: the upload is spooled to a temp file and
// handed to the queue, and the handler returns as soon as the job is
// accepted or rejected.
func (s *service) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !s.authorized(r, s.cfg.Auth.Tokens) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if s.cfg.Server.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing p25_file"})
		return
	}

	var tempPath, metadataBlob, originalFilename string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if tempPath != "" {
				os.Remove(tempPath)
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing p25_file"})
			return
		}

		switch part.FormName() {
		case "p25_file":
			originalFilename = part.FileName()
			tempPath, err = s.spoolUpload(part)
			if err != nil {
				log.Printf("decode: failed to spool upload: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
				part.Close()
				return
			}
		case "metadata":
			body, _ := io.ReadAll(part)
			metadataBlob = string(body)
		}
		part.Close()
	}

	if tempPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing p25_file"})
		return
	}

	job := &queue.Job{
		InputPath:        tempPath,
		MetadataBlob:     metadataBlob,
		OutputBasePath:   s.cfg.Output.Root,
		StreamName:       "default",
		HookScriptPath:   s.cfg.Output.HookScriptPath,
		ClientIP:         clientIP(r, s.cfg.GeoIP.TrustedProxies),
		OriginalFilename: originalFilename,
	}

	id, err := s.pool.Submit(job)
	if err != nil {
		os.Remove(tempPath)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Processing queue is full"})
		return
	}

	s.metrics.ObserveJobQueued()
	s.bus.Publish(eventbus.Event{JobID: id, Type: "queued", Timestamp: time.Now()})

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      id,
		"status":      "queued",
		"message":     "job queued for processing",
		"stream_name": job.StreamName,
	})
}

// spoolUpload copies part's body to a new temp file under the
// output root, preserving bytes exactly — multipart part readers
// never interpret their payload as text.
func (s *service) spoolUpload(part io.Reader) (string, error) {
	dir := filepath.Join(s.cfg.Output.Root, ".incoming")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "upload-*.bin")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, part); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// statusHandler implements C9's GET /api/v1/status: queue depth,
// active workers, and the monotone counters C10 keeps.
func (s *service) statusHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	s.metrics.SetPoolGauges(stats.QueueDepth, stats.ActiveWorkers, stats.TotalWorkers)
	resp := map[string]interface{}{
		"queue_depth":     stats.QueueDepth,
		"queue_capacity":  stats.QueueCapacity,
		"active_workers":  stats.ActiveWorkers,
		"total_workers":   stats.TotalWorkers,
		"queued_total":    stats.Queued,
		"completed_total": stats.Completed,
		"failed_total":    stats.Failed,
		"avg_process_ms":  stats.AverageProcessMs,
	}

	if cores, err := hostCPUCores(); err == nil {
		resp["host_cpu_cores"] = cores
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		resp["host_cpu_percent"] = pct[0]
	}

	writeJSON(w, http.StatusOK, resp)
}

// hostCPUCores sums logical core counts across all reported CPUs,
// the same multi-socket-aware tally the teacher's admin status route
// computes before folding it into a load-per-core figure.
func hostCPUCores() (int, error) {
	info, err := cpu.Info()
	if err != nil {
		return 0, err
	}
	var cores int
	for _, c := range info {
		cores += int(c.Cores)
	}
	return cores, nil
}

// jobView is the wire shape for a single job snapshot, shared by the
// polling route and the WebSocket stream.
type jobView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReceivedAt  string `json:"received_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
}

func newJobView(j queue.Job) jobView {
	v := jobView{
		ID:          j.ID,
		Status:      j.Status.String(),
		ReceivedAt:  j.ReceivedAt.Format(time.RFC3339),
		ErrorReason: j.ErrorReason,
	}
	if !j.StartedAt.IsZero() {
		v.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if !j.CompletedAt.IsZero() {
		v.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return v
}

// jobStatusHandler implements C9's GET /api/v1/jobs/{id}.
func (s *service) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.pool.Tracker().Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job"})
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// jobStreamHandler implements C17: it pushes a status snapshot every
// time the tracker's view of the job changes, then closes once the
// job reaches a terminal state. A job already terminal at connect
// time gets exactly one message.
func (s *service) jobStreamHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.pool.Tracker().Get(id)
	if err != nil {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade failed for job %s: %v", id, err)
		return
	}
	defer conn.Close()

	lastStatus := queue.Status(-1)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if job.Status != lastStatus {
			if err := conn.WriteJSON(newJobView(job)); err != nil {
				return
			}
			lastStatus = job.Status
		}
		if job.Status == queue.StatusCompleted || job.Status == queue.StatusFailed {
			return
		}

		select {
		case <-ticker.C:
			job, err = s.pool.Tracker().Get(id)
			if err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// adminKeysHandler implements the admin-token-gated runtime key
// insertion route. It is serialized by cipher.KeyTable's own write
// lock, which is never held for the duration of a decode.
func (s *service) adminKeysHandler(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Auth.AdminToken == "" || !s.authorized(r, []string{s.cfg.Auth.AdminToken}) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var body struct {
		KeyID  string `json:"key_id"`
		KeyHex string `json:"key_hex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := keytable.Load(s.keys, []string{body.KeyID + ":" + body.KeyHex}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorized reports whether r carries one of tokens via either
// Authorization: Bearer <token> or X-API-Key: <token>. An empty
// tokens list means auth is not configured, and every request is
// authorized.
func (s *service) authorized(r *http.Request, tokens []string) bool {
	var configured bool
	for _, t := range tokens {
		if t != "" {
			configured = true
			break
		}
	}
	if !configured {
		return true
	}

	presented := r.Header.Get("X-API-Key")
	if auth := r.Header.Get("Authorization"); presented == "" && strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	if presented == "" {
		return false
	}
	for _, t := range tokens {
		if t != "" && t == presented {
			return true
		}
	}
	return false
}

// clientIP returns the request's originating address, honoring
// X-Forwarded-For only when the immediate peer is a configured
// trusted proxy — an untrusted client cannot spoof its own GeoIP
// country by setting the header itself.
func clientIP(r *http.Request, trustedProxies []string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	for _, p := range trustedProxies {
		if p != host {
			continue
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		break
	}
	return host
}

// gzipMiddleware compresses response bodies for clients advertising
// Accept-Encoding: gzip, the same opportunistic compression the
// teacher applies to its own JSON/metrics routes rather than
// reaching for a third-party compression codec for small text
// responses.
func gzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, gz: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	return g.gz.Write(b)
}
