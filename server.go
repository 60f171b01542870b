package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bodul/gearscan/internal/calibration"
	"github.com/bodul/gearscan/internal/schematic"
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// rateLimiter is a simple per-client token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*bucket
	rate     int           // tokens per interval
	interval time.Duration // refill interval
	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter(rate int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		stop:     make(chan struct{}),
	}
	go rl.cleanup(time.Minute, 5*time.Minute)
	return rl
}

// cleanup drops visitors idle for longer than ttl until close is called.
func (rl *rateLimiter) cleanup(every, ttl time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.visitors {
				if time.Since(b.lastSeen) > ttl {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.visitors[key]
	if !ok {
		rl.visitors[key] = &bucket{tokens: rl.rate - 1, lastSeen: time.Now()}
		return true
	}

	// Refill tokens based on elapsed time.
	elapsed := time.Since(b.lastSeen)
	refill := int(elapsed / rl.interval)
	if refill > 0 {
		b.tokens += refill * rl.rate
		if b.tokens > rl.rate {
			b.tokens = rl.rate
		}
		b.lastSeen = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// clientKey identifies the caller of r by host, ignoring the source port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Server is the gearscan HTTP API.
type Server struct {
	mux      *http.ServeMux
	store    *Store
	gemini   *GeminiClient
	events   *Broadcaster
	cfg      ServerConfig
	logger   *zap.Logger
	uploadRL *rateLimiter
	queryRL  *rateLimiter
}

// NewServer creates a configured HTTP server. gemini may be nil, in which
// case photo extraction answers 503.
func NewServer(store *Store, gemini *GeminiClient, cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	s := &Server{
		mux:      http.NewServeMux(),
		store:    store,
		gemini:   gemini,
		events:   NewBroadcaster(),
		cfg:      cfg,
		logger:   logger,
		uploadRL: newRateLimiter(cfg.UploadRate, cfg.UploadInterval),
		queryRL:  newRateLimiter(cfg.QueryRate, cfg.QueryInterval),
	}
	s.routes()
	return s
}

// Close stops the background work of the server.
func (s *Server) Close() {
	s.uploadRL.close()
	s.queryRL.close()
}

func (s *Server) routes() {
	// Schematic API
	s.mux.HandleFunc("POST /api/schematics", s.handleCreateSchematic)
	s.mux.HandleFunc("POST /api/schematics/image", s.handleExtractSchematic)
	s.mux.HandleFunc("GET /api/schematics", s.handleListSchematics)
	s.mux.HandleFunc("GET /api/schematics/{id}", s.handleGetSchematic)

	// Analysis API
	s.mux.HandleFunc("POST /api/schematics/{id}/analysis", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/schematics/{id}/analysis", s.handleGetAnalysis)
	s.mux.HandleFunc("GET /api/schematics/{id}/parts", s.handleParts)
	s.mux.HandleFunc("GET /api/schematics/{id}/gears", s.handleGears)
	s.mux.HandleFunc("GET /api/schematics/{id}/runs", s.handleRunsTouching)
	s.mux.HandleFunc("GET /api/schematics/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/schematics/{id}/ws", s.handleWS)

	s.mux.HandleFunc("POST /api/calibration", s.handleCalibration)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	s.logger.Debug("Request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
	s.mux.ServeHTTP(w, r)
}

// --- Schematic handlers ---

// POST /api/schematics: store a schematic sent as text or as {"lines": [...]}.
func (s *Server) handleCreateSchematic(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var (
		g   *schematic.Grid
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req struct {
			Lines []string `json:"lines"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		g, err = schematic.New(req.Lines)
	} else {
		g, err = schematic.Parse(r.Body)
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	sc := s.store.SaveSchematic(NewSchematic(g, SourceText))
	writeJSON(w, http.StatusCreated, sc)
}

// POST /api/schematics/image: transcribe a photo with Gemini and store it.
func (s *Server) handleExtractSchematic(w http.ResponseWriter, r *http.Request) {
	if !s.uploadRL.allow(clientKey(r)) {
		jsonError(w, "too many requests, retry later", http.StatusTooManyRequests)
		return
	}

	if s.gemini == nil {
		jsonError(w, "image extraction not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		jsonError(w, "image too large", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "field 'image' required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMIME[mimeType] {
		jsonError(w, "accepted formats: JPEG or PNG", http.StatusBadRequest)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "could not read image", http.StatusInternalServerError)
		return
	}

	g, err := s.gemini.ExtractSchematic(r.Context(), imageData, mimeType)
	if err != nil {
		if errors.Is(err, schematic.ErrMalformedInput) || errors.Is(err, schematic.ErrOverflow) {
			s.fail(w, err)
			return
		}
		s.logger.Error("Gemini extraction failed", zap.Error(err))
		jsonError(w, "schematic extraction failed", http.StatusBadGateway)
		return
	}

	sc := s.store.SaveSchematic(NewSchematic(g, SourceImage))
	writeJSON(w, http.StatusCreated, sc)
}

// GET /api/schematics: list all schematics.
func (s *Server) handleListSchematics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListSchematics())
}

// GET /api/schematics/{id}: get a single schematic.
func (s *Server) handleGetSchematic(w http.ResponseWriter, r *http.Request) {
	sc := s.lookup(w, r)
	if sc == nil {
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// --- Analysis handlers ---

// POST /api/schematics/{id}/analysis: run both aggregations and notify subscribers.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.queryRL.allow(clientKey(r)) {
		jsonError(w, "too many requests, retry later", http.StatusTooManyRequests)
		return
	}

	id := r.PathValue("id")
	rep, err := s.store.Analyze(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.events.Publish(id, Event{Type: "analysis_ready", Data: rep})
	writeJSON(w, http.StatusCreated, rep)
}

// GET /api/schematics/{id}/analysis: latest report.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	a := s.store.GetAnalysis(r.PathValue("id"))
	if a == nil {
		jsonError(w, "schematic not found", http.StatusNotFound)
		return
	}
	rep, ok := a.Latest()
	if !ok {
		jsonError(w, "schematic not analyzed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AnalysisStatus
		Report schematic.Report `json:"report"`
	}{a.Status(), rep})
}

// GET /api/schematics/{id}/parts: part-number sum and the contributing runs.
func (s *Server) handleParts(w http.ResponseWriter, r *http.Request) {
	sc := s.lookup(w, r)
	if sc == nil {
		return
	}
	g := sc.Grid()
	sum, err := schematic.PartNumberSum(g)
	if err != nil {
		s.fail(w, err)
		return
	}
	parts := schematic.PartNumbers(g)
	writeJSON(w, http.StatusOK, map[string]any{"sum": sum, "parts": nonNil(parts)})
}

// GET /api/schematics/{id}/gears: gear-ratio sum and the gears.
func (s *Server) handleGears(w http.ResponseWriter, r *http.Request) {
	sc := s.lookup(w, r)
	if sc == nil {
		return
	}
	g := sc.Grid()
	gears, err := schematic.Gears(g)
	if err != nil {
		s.fail(w, err)
		return
	}
	sum, err := schematic.GearRatioSum(g)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sum": sum, "gears": nonNil(gears)})
}

// GET /api/schematics/{id}/runs?row=&col=: runs touching a cell.
func (s *Server) handleRunsTouching(w http.ResponseWriter, r *http.Request) {
	sc := s.lookup(w, r)
	if sc == nil {
		return
	}
	row, err1 := strconv.Atoi(r.URL.Query().Get("row"))
	col, err2 := strconv.Atoi(r.URL.Query().Get("col"))
	if err1 != nil || err2 != nil {
		jsonError(w, "integer query parameters 'row' and 'col' required", http.StatusBadRequest)
		return
	}

	g := sc.Grid()
	ch, err := g.At(row, col)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"row":   row,
		"col":   col,
		"char":  string(ch),
		"class": schematic.Classify(ch).String(),
		"runs":  nonNil(g.RunsTouching(row, col)),
	})
}

// GET /api/schematics/{id}/events: SSE stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sc := s.lookup(w, r)
	if sc == nil {
		return
	}
	s.events.ServeSSE(w, r, sc.ID, s.stateEvent(sc))
}

// GET /api/schematics/{id}/ws: WebSocket stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sc := s.lookup(w, r)
	if sc == nil {
		return
	}
	s.events.ServeWS(w, r, sc.ID, s.stateEvent(sc), s.logger)
}

// stateEvent describes a schematic and its latest report, if any.
func (s *Server) stateEvent(sc *Schematic) *Event {
	state := map[string]any{"schematic": sc}
	if a := s.store.GetAnalysis(sc.ID); a != nil {
		if rep, ok := a.Latest(); ok {
			state["report"] = rep
		}
	}
	return &Event{Type: "schematic_state", Data: state}
}

// --- Calibration ---

// POST /api/calibration: sum of calibration values.
func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	if !s.queryRL.allow(clientKey(r)) {
		jsonError(w, "too many requests, retry later", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req struct {
		Lines []string `json:"lines"`
		Words bool     `json:"words"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	mode := calibration.Digits
	if req.Words {
		mode = calibration.Words
	}
	sum, err := calibration.Sum(req.Lines, mode)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sum": sum})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"schematics":     len(s.store.ListSchematics()),
		"cached_reports": s.store.CachedReports(),
	})
}

// --- Helpers ---

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *Schematic {
	sc := s.store.GetSchematic(r.PathValue("id"))
	if sc == nil {
		jsonError(w, "schematic not found", http.StatusNotFound)
	}
	return sc
}

// fail maps an error to a status code. Internal errors are logged, not echoed.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schematic.ErrMalformedInput),
		errors.Is(err, schematic.ErrOutOfBounds),
		errors.Is(err, schematic.ErrOverflow),
		errors.Is(err, calibration.ErrNoDigits):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "schematic not found", http.StatusNotFound)
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error("Request failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
