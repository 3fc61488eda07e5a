// Package webhook is the inbound HTTP surface: the Teams outgoing-webhook
// endpoint, a health check and a status page. The webhook handler verifies
// the request signature, spawns one background pipeline run and acknowledges
// immediately — Teams gives outgoing webhooks only a few seconds before it
// reports the bot as unresponsive.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/hotaket/ollamabridge/internal/config"
)

// maxRequestBodySize bounds inbound webhook bodies.
const maxRequestBodySize = 1 << 20 // 1MB

// htmlTagRe strips the HTML markup Teams wraps around message text.
var htmlTagRe = regexp.MustCompile(`<.*?>|\r\n`)

// Processor runs the relay pipeline for one message.
type Processor interface {
	Process(runID, text string)
}

// Pinger probes the model endpoint for the health check.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// Server exposes the HTTP endpoints.
type Server struct {
	cfg     *config.Config
	proc    Processor
	pinger  Pinger
	limiter *RateLimiter
}

// NewServer creates the HTTP surface. pinger may be nil (health reports the
// model as unreachable).
func NewServer(cfg *config.Config, proc Processor, pinger Pinger) *Server {
	return &Server{
		cfg:     cfg,
		proc:    proc,
		pinger:  pinger,
		limiter: NewRateLimiter(cfg.Server.RateLimitRPM, cfg.Server.RateLimitBurst),
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "debug", s.cfg.Server.Debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type inboundMessage struct {
	Text string `json:"text"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow(senderKey(r)) {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := readAll(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read request body"})
		return
	}

	if !s.cfg.Teams.SkipVerification {
		if !VerifySignature(body, r.Header.Get("Authorization"), s.cfg.Teams.OutgoingToken) {
			if s.cfg.Server.Debug {
				slog.Warn("security.signature_invalid, continuing in debug mode")
			} else {
				slog.Warn("security.signature_invalid", "remote", r.RemoteAddr)
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
				return
			}
		}
	}

	var msg inboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if msg.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text field is required"})
		return
	}

	text := htmlTagRe.ReplaceAllString(msg.Text, " ")

	runID := uuid.NewString()
	slog.Info("webhook.accepted", "run", runID, "remote", r.RemoteAddr, "chars", len(text))

	go s.proc.Process(runID, text)

	ack := "リクエストを受け付けました。回答を生成中です..."
	if s.cfg.Search.Enabled {
		ack += " 関連ファイルも検索します。"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"type": "message",
		"text": ack,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ollamaUp := false
	if s.pinger != nil {
		ollamaUp = s.pinger.Ping(r.Context())
	}

	status := "ok"
	if !ollamaUp {
		status = "degraded"
	}

	searchStatus := "disabled"
	searchPath := "未設定"
	if s.cfg.Search.Enabled {
		searchStatus = "enabled"
		searchPath = s.cfg.Search.Dir
	}

	teamsStatus := "not configured"
	if s.cfg.Teams.WorkflowURL != "" {
		teamsStatus = "configured"
	}

	ollamaStatus := "disconnected"
	if ollamaUp {
		ollamaStatus = "connected"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"timestamp":     time.Now().Format(time.RFC3339),
		"system":        "ollamabridge",
		"ollama_status": ollamaStatus,
		"teams_webhook": teamsStatus,
		"search_status": searchStatus,
		"search_path":   searchPath,
		"model":         s.cfg.Ollama.Model,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	searchNote := "検索機能: 無効"
	if s.cfg.Search.Enabled {
		searchNote = "検索機能: 有効 (" + s.cfg.Search.Dir + ")"
	}
	fmt.Fprintf(w, "ollamabridge is running! %s\n", searchNote)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("webhook.write_response_failed", "error", err)
	}
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
