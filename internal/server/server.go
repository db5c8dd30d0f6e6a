package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-piper-tts/internal/audio"
	"github.com/example/go-piper-tts/internal/config"
	"github.com/example/go-piper-tts/internal/g2p"
	"github.com/example/go-piper-tts/internal/phoneme"
	"github.com/example/go-piper-tts/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Synthesizer produces WAV bytes from text. A negative speakerID selects the
// configured default speaker.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speakerID int) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for
// POST /synthesize.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	synth Synthesizer
	opts  options
	sem   chan struct{} // semaphore for worker pool
	log   *slog.Logger
}

// NewHandler returns an http.Handler that serves GET /health and
// POST /synthesize.
func NewHandler(synth Synthesizer, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		synth: synth,
		opts:  opts,
		log:   opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/synthesize", h.handleSynthesize)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type synthesizeRequest struct {
	Text      string `json:"text"`
	SpeakerID *int   `json:"speaker_id,omitempty"`
}

func (h *handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	speakerID := -1
	if req.SpeakerID != nil {
		speakerID = *req.SpeakerID
	}

	// Acquire a worker slot — honour context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			// slot acquired
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	// Apply per-request timeout.
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	wav, err := h.synth.Synthesize(ctx, req.Text, speakerID)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		status := statusForError(err)

		logFn := h.log.ErrorContext
		if status < http.StatusInternalServerError {
			logFn = h.log.WarnContext
		}
		logFn(r.Context(), "synthesis failed",
			slog.Int("text_len", len(req.Text)),
			slog.Int("speaker_id", speakerID),
			slog.Int64("duration_ms", durationMS),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		writeError(w, status, errorMessage(status, err))
		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int("speaker_id", speakerID),
		slog.Int64("duration_ms", durationMS),
		slog.Int("wav_bytes", len(wav)),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// statusForError maps pipeline errors onto HTTP status codes. Unknown-token
// errors are client errors (the text contains something the loaded tables
// cannot express); inference failures and everything else are server errors.
func statusForError(err error) int {
	var (
		unknownPhoneme *phoneme.UnknownPhonemeError
		unknownToken   *g2p.UnknownTokenError
		unknownSymbol  *tts.UnknownSymbolError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.As(err, &unknownPhoneme),
		errors.As(err, &unknownToken),
		errors.As(err, &unknownSymbol):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(status int, err error) string {
	if status == http.StatusGatewayTimeout {
		return "synthesis timed out"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	tts             *tts.Service
	shutdownTimeout time.Duration
}

func New(cfg config.Config, svc *tts.Service) *Server {
	shutdown := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		tts:             svc,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	backend, err := config.NormalizeBackend(s.cfg.TTS.Backend)
	if err != nil {
		return err
	}

	synth, workers, err := s.runtimeDeps(backend)
	if err != nil {
		return err
	}

	handlerOpts := []Option{
		WithWorkers(workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second),
	}

	h := NewHandler(synth, handlerOpts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP checks that a server at addr answers /health with 200.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}

func (s *Server) runtimeDeps(backend string) (Synthesizer, int, error) {
	switch backend {
	case config.BackendNative:
		svc := s.tts
		if svc == nil {
			var err error
			svc, err = tts.NewService(s.cfg)
			if err != nil {
				return nil, 0, fmt.Errorf("initialize native service: %w", err)
			}
		}
		return &nativeSynthesizer{svc: svc}, s.cfg.Server.Workers, nil
	case config.BackendPiperCLI:
		return &cliSynthesizer{
			executablePath: s.cfg.TTS.PiperCLIPath,
			modelPath:      s.cfg.Paths.ModelPath,
			dataPath:       s.cfg.TTS.PiperDataPath,
		}, s.cfg.Server.Workers, nil
	default:
		return nil, 0, fmt.Errorf("unsupported backend %q", backend)
	}
}

type nativeSynthesizer struct {
	svc *tts.Service
}

func (n *nativeSynthesizer) Synthesize(ctx context.Context, input string, speakerID int) ([]byte, error) {
	params := n.svc.Params()
	if speakerID >= 0 {
		params.SpeakerID = speakerID
	}

	wave, err := n.svc.SynthesizeWithParams(ctx, input, params)
	if err != nil {
		return nil, err
	}
	return audio.EncodeWAV(wave.Samples, wave.SampleRate)
}

// cliSynthesizer shells out to a reference piper executable. Used for parity
// checks against the native pipeline.
type cliSynthesizer struct {
	executablePath string
	modelPath      string
	dataPath       string
}

func (c *cliSynthesizer) Synthesize(ctx context.Context, input string, speakerID int) ([]byte, error) {
	exe := c.executablePath
	if exe == "" {
		exe = "piper"
	}

	args := []string{"--model", c.modelPath, "--output_file", "-"}
	if speakerID >= 0 {
		args = append(args, "--speaker", strconv.Itoa(speakerID))
	}
	if c.dataPath != "" {
		args = append(args, "--data-dir", c.dataPath)
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdin = strings.NewReader(input)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
