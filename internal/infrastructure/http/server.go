// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/domain/usecases"
	"github.com/0xcro3dile/writecheck-go/internal/logging"
)

// HealthChecker reports whether an optional collaborator is reachable.
type HealthChecker interface {
	IsServiceHealthy(ctx context.Context) bool
}

// Options configures the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64 // Zero means unlimited
}

// Server is the HTTP server for the annotation API.
type Server struct {
	annotate  *usecases.AnnotateUseCase
	rules     *usecases.RuleCache
	annotator HealthChecker // nil when heuristics are disabled
	opts      Options
}

// NewServer creates a new HTTP server.
func NewServer(annotateUC *usecases.AnnotateUseCase, rules *usecases.RuleCache, annotator HealthChecker, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	return &Server{
		annotate:  annotateUC,
		rules:     rules,
		annotator: annotator,
		opts:      opts,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// API
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/rules", s.handleRules)
	mux.HandleFunc("POST /api/rules/reload", s.handleReload)
	mux.HandleFunc("POST /api/rules/{id}/disable", s.handleToggle(true))
	mux.HandleFunc("POST /api/rules/{id}/enable", s.handleToggle(false))

	return corsMiddleware(requestIDMiddleware(loggingMiddleware(mux)))
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	logging.Info("writecheck server starting", "addr", s.opts.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// processRequest mirrors the wire request. Paging fields stay raw so that
// numeric strings are accepted too.
type processRequest struct {
	Text       *string         `json:"text"`
	ChunkIndex json.RawMessage `json:"chunk_index"`
	Offset     json.RawMessage `json:"offset"`
	Limit      json.RawMessage `json:"limit"`
}

// handleProcess annotates one chunk of the posted text.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "Missing 'text' in request body")
		return
	}

	resp, err := s.annotate.Check(r.Context(), &entities.CheckRequest{
		Text:       *req.Text,
		ChunkIndex: lenientInt(req.ChunkIndex, 0),
		Offset:     lenientInt(req.Offset, -1),
		Limit:      lenientInt(req.Limit, -1),
	})
	if err != nil {
		if errors.Is(err, usecases.ErrInputTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		logging.ErrorContext(r.Context(), "check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// lenientInt reads a JSON number or numeric string. Anything else, including
// fractions, yields fallback.
func lenientInt(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	switch x := v.(type) {
	case float64:
		if x != float64(int(x)) {
			return fallback
		}
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return fallback
		}
		return n
	}
	return fallback
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rs := s.rules.Current()
	resp := map[string]any{
		"status":        "ok",
		"rules_loaded":  rs != nil,
		"rules_version": rs.Version(),
		"heuristics":    "disabled",
	}
	if s.annotator != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if s.annotator.IsServiceHealthy(ctx) {
			resp["heuristics"] = "ok"
		} else {
			resp["heuristics"] = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type ruleFailure struct {
	RuleID  string `json:"rule_id"`
	Pattern string `json:"pattern"`
	Error   string `json:"error"`
}

// handleRules describes the active rule snapshot.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rs := s.rules.Current()
	if rs == nil {
		writeError(w, http.StatusServiceUnavailable, usecases.ErrNoRules.Error())
		return
	}

	failures := make([]ruleFailure, 0, len(rs.Failures()))
	for _, f := range rs.Failures() {
		failures = append(failures, ruleFailure{RuleID: f.RuleID, Pattern: f.Pattern, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":   s.rules.Source(),
		"version":  rs.Version(),
		"total":    rs.Len(),
		"enabled":  rs.EnabledCount(),
		"failures": failures,
		"rules":    rs.Rules(),
	})
}

// handleReload reloads rules from the source.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	changed, err := s.rules.Reload(r.Context())
	if err != nil {
		logging.ErrorContext(r.Context(), "rule reload failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	rs := s.rules.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"version": rs.Version(),
		"total":   rs.Len(),
		"failed":  len(rs.Failures()),
	})
}

func (s *Server) handleToggle(disabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rs, err := s.rules.SetDisabled(id, disabled)
		switch {
		case errors.Is(err, usecases.ErrNoRules):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case errors.Is(err, usecases.ErrUnknownRule):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       id,
			"disabled": disabled,
			"version":  rs.Version(),
			"enabled":  rs.EnabledCount(),
		})
	}
}

// handleIndex renders a minimal page for trying rules against pasted text.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>WriteCheck</title>
    <style>
        body { font-family: sans-serif; max-width: 50rem; margin: 2rem auto; }
        textarea { width: 100%; height: 14rem; }
        li { margin: .5rem 0; }
        .hit { background: #ffe08a; }
        .rule { color: #666; font-size: .85em; }
    </style>
</head>
<body>
    <h1>WriteCheck</h1>
    <form onsubmit="check(event)">
        <textarea id="text" placeholder="Paste a draft..."></textarea>
        <button type="submit">Check</button>
    </form>
    <p id="summary"></p>
    <ol id="matches"></ol>

    <script>
        async function check(e) {
            e.preventDefault();
            const text = document.getElementById('text').value;
            const list = document.getElementById('matches');
            const summary = document.getElementById('summary');
            list.innerHTML = '';

            const res = await fetch('/process', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({text: text, limit: 200})
            });
            const data = await res.json();
            if (!res.ok) {
                summary.textContent = data.error || 'Request failed';
                return;
            }
            summary.textContent = data.total + ' issue(s)';
            const chars = Array.from(text);
            for (const m of data.matches) {
                const li = document.createElement('li');
                const hit = document.createElement('span');
                hit.className = 'hit';
                hit.textContent = chars.slice(m.start, m.end).join('');
                const rule = document.createElement('span');
                rule.className = 'rule';
                rule.textContent = ' [' + m.rule_id + '] ';
                li.append(hit, rule, document.createTextNode(m.issue || ''));
                list.appendChild(li);
            }
        }
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.HTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
