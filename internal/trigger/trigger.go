package trigger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/replikat/dirsyncd/internal/activation"
	"github.com/replikat/dirsyncd/internal/config"
	syncpkg "github.com/replikat/dirsyncd/internal/sync"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed
// with the shared token, in the form "sha256=<hex>".
const SignatureHeader = "X-Sync-Signature-256"

// Requester kicks off an out-of-schedule synchronization cycle. It
// reports false when a cycle is already running and the request was
// dropped.
type Requester interface {
	TriggerNow(ctx context.Context) bool
}

// StatsSource reports the outcome of the most recent completed cycle.
// ok is false before the first cycle finishes.
type StatsSource interface {
	LastSummary() (syncpkg.Summary, bool)
}

// Server exposes a small HTTP control surface for the running daemon:
// POST /v1/sync requests an immediate cycle, GET /healthz reports
// liveness. It never transports file content.
type Server struct {
	cfg       *config.Config
	requester Requester
	stats     StatsSource
	logger    *slog.Logger
	token     []byte
	debounce  *debouncer

	mu   sync.Mutex
	addr string // bound listener address, set once Start has a listener
}

// debouncer collapses bursts of trigger requests into one cycle
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// NewServer creates a new trigger server
func NewServer(cfg *config.Config, requester Requester, stats StatsSource, logger *slog.Logger) (*Server, error) {
	token, err := os.ReadFile(cfg.Serve.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger token: %w", err)
	}

	// Trim any whitespace/newlines from the token
	token = []byte(strings.TrimSpace(string(token)))

	return &Server{
		cfg:       cfg,
		requester: requester,
		stats:     stats,
		logger:    logger,
		token:     token,
		debounce:  &debouncer{delay: 2 * time.Second},
	}, nil
}

// Start runs the trigger HTTP server until ctx is cancelled. A
// systemd-activated socket is used when one was passed to the process;
// otherwise the server listens on the configured address.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sync", s.handleSync)
	mux.HandleFunc("/healthz", s.handleHealth)

	server := &http.Server{
		Addr:              s.cfg.Serve.ListenAddr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	listener, err := s.listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("trigger server starting", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down trigger server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) listen() (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("socket activation: %w", err)
	}
	if len(listeners) > 0 {
		s.logger.Info("using systemd-activated socket")
		return listeners[0], nil
	}
	return net.Listen("tcp", s.cfg.Serve.ListenAddr)
}

// boundAddr returns the listener's address, or "" before Start bound one.
// Useful when listening on port 0.
func (s *Server) boundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleSync handles sync trigger requests
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn("rejecting non-POST trigger request", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if !s.verifySignature(body, r.Header.Get(SignatureHeader)) {
		s.logger.Warn("rejecting trigger request with invalid signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	s.logger.Info("trigger request accepted", "remote", r.RemoteAddr)

	// Debounced: a burst of requests collapses into a single cycle. The
	// cycle itself is still subject to the scheduler's no-overlap policy.
	s.debounce.trigger(func() {
		if !s.requester.TriggerNow(context.Background()) {
			s.logger.Warn("triggered synchronization skipped: a cycle is already running")
		}
	})

	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprintf(w, "Sync requested\n")
}

type healthResponse struct {
	Status    string       `json:"status"`
	LastCycle *cycleStatus `json:"last_cycle,omitempty"`
}

type cycleStatus struct {
	syncpkg.Summary
	Took string `json:"took"`
}

// handleHealth reports daemon liveness and the last completed cycle
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{Status: "ok"}
	if s.stats != nil {
		if summary, ok := s.stats.LastSummary(); ok {
			resp.LastCycle = &cycleStatus{Summary: summary, Took: summary.Took.String()}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// verifySignature verifies the HMAC-SHA256 signature of the request body
func (s *Server) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, s.token)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expected))
}

// trigger schedules the callback to run after the debounce delay
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
