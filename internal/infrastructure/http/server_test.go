package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/writecheck-go/internal/adapters/rulesource"
	"github.com/0xcro3dile/writecheck-go/internal/domain/engine"
	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/domain/usecases"
)

type fakeHealth bool

func (f fakeHealth) IsServiceHealthy(ctx context.Context) bool { return bool(f) }

func newTestServer(t *testing.T, load bool, opts Options, rules ...entities.Rule) (*Server, *rulesource.StaticSource) {
	t.Helper()
	src := rulesource.NewStaticSource("test", rules...)
	cache := usecases.NewRuleCache(src, engine.CompileOptions{})
	if load {
		_, err := cache.Reload(context.Background())
		require.NoError(t, err)
	}
	uc := usecases.NewAnnotateUseCase(cache, nil, usecases.AnnotateConfig{
		MaxDocumentChars: 50,
		Paging:           engine.Defaults{Limit: 20, MaxLimit: 100},
	})
	return NewServer(uc, cache, nil, opts), src
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

var veryRule = entities.Rule{ID: "very", Pattern: `\bvery\b`, IgnoreCase: true, Suggestion: "Cut it."}

func TestProcess(t *testing.T) {
	s, _ := newTestServer(t, true, Options{}, veryRule)

	rec, body := do(t, s, http.MethodPost, "/process", `{"text": "A very good day.\nVery nice."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	matches := body["matches"].([]any)
	require.Len(t, matches, 2)
	first := matches[0].(map[string]any)
	assert.Equal(t, "very", first["rule_id"])
	assert.Equal(t, float64(2), first["start"])
	assert.Equal(t, float64(6), first["end"])
	assert.Equal(t, "Cut it.", first["issue"])
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(20), body["limit"])
	assert.Equal(t, false, body["chunk_has_more"])
	assert.NotEmpty(t, body["rules_version"])
}

func TestProcess_LenientPaging(t *testing.T) {
	s, _ := newTestServer(t, true, Options{}, veryRule)
	text := `"very very very"`

	tests := []struct {
		name       string
		paging     string
		wantOffset float64
		wantLimit  float64
		wantCount  int
	}{
		{"numbers", `"offset": 1, "limit": 1`, 1, 1, 1},
		{"numeric strings", `"offset": "1", "limit": " 2 "`, 1, 2, 2},
		{"garbage", `"offset": "abc", "limit": true`, 0, 20, 3},
		{"fraction", `"offset": 1.5, "limit": null`, 0, 20, 3},
		{"negative", `"offset": -4, "limit": -1`, 0, 20, 3},
		{"clamped", `"limit": 5000`, 0, 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/process", `{"text": `+text+`, `+tt.paging+`}`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOffset, body["offset"])
			assert.Equal(t, tt.wantLimit, body["limit"])
			assert.Len(t, body["matches"], tt.wantCount)
		})
	}
}

func TestProcess_HugeOffset(t *testing.T) {
	s, _ := newTestServer(t, true, Options{}, veryRule)

	rec, body := do(t, s, http.MethodPost, "/process", `{"text": "very very", "offset": "9223372036854775807"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["matches"])
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, false, body["has_more"])
}

func TestProcess_Errors(t *testing.T) {
	s, _ := newTestServer(t, true, Options{MaxBodyBytes: 1024}, veryRule)

	rec, body := do(t, s, http.MethodPost, "/process", `{"chunk_index": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing 'text' in request body", body["error"])

	rec, _ = do(t, s, http.MethodPost, "/process", `{"text": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/process", `{"text": "`+strings.Repeat("a", 51)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/process", `{"text": "`+strings.Repeat("a", 2000)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/process", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProcess_EmptyMatchesIsArray(t *testing.T) {
	s, _ := newTestServer(t, false, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"text": ""}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"matches":[]`)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, true, Options{}, veryRule)
	_, body := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["rules_loaded"])
	assert.Equal(t, "disabled", body["heuristics"])

	s.annotator = fakeHealth(false)
	_, body = do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, "unavailable", body["heuristics"])

	s.annotator = fakeHealth(true)
	_, body = do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, "ok", body["heuristics"])
}

func TestRules(t *testing.T) {
	s, _ := newTestServer(t, true, Options{}, veryRule, entities.Rule{ID: "bad", Pattern: "("})

	rec, body := do(t, s, http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "static:test", body["source"])
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["enabled"])

	failures := body["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].(map[string]any)["rule_id"])
}

func TestRules_NotLoaded(t *testing.T) {
	s, _ := newTestServer(t, false, Options{})

	rec, _ := do(t, s, http.MethodGet, "/api/rules", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/rules/very/disable", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReload(t *testing.T) {
	s, src := newTestServer(t, true, Options{}, veryRule)

	_, body := do(t, s, http.MethodPost, "/api/rules/reload", "")
	assert.Equal(t, false, body["changed"])

	src.Set([]entities.Rule{veryRule, {ID: "so", Pattern: `\bso\b`}})
	rec, body := do(t, s, http.MethodPost, "/api/rules/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["changed"])
	assert.Equal(t, float64(2), body["total"])
}

func TestToggle(t *testing.T) {
	s, _ := newTestServer(t, true, Options{}, veryRule)

	rec, body := do(t, s, http.MethodPost, "/api/rules/very/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["enabled"])

	_, body = do(t, s, http.MethodPost, "/process", `{"text": "very"}`)
	assert.Empty(t, body["matches"])

	rec, _ = do(t, s, http.MethodPost, "/api/rules/very/enable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, body = do(t, s, http.MethodPost, "/process", `{"text": "very"}`)
	assert.Len(t, body["matches"], 1)

	rec, body = do(t, s, http.MethodPost, "/api/rules/nope/disable", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "nope")
}

func TestMiddleware(t *testing.T) {
	s, _ := newTestServer(t, true, Options{})

	rec, _ := do(t, s, http.MethodOptions, "/process", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = do(t, s, http.MethodGet, "/api/health", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, true, Options{})

	rec, _ := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "WriteCheck")

	rec, _ = do(t, s, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLenientInt(t *testing.T) {
	assert.Equal(t, 7, lenientInt(json.RawMessage(`7`), -1))
	assert.Equal(t, 7, lenientInt(json.RawMessage(`"7"`), -1))
	assert.Equal(t, -1, lenientInt(json.RawMessage(`"7x"`), -1))
	assert.Equal(t, -1, lenientInt(json.RawMessage(`[7]`), -1))
	assert.Equal(t, -1, lenientInt(nil, -1))
}
