package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kontext-io/kontext/internal/logger"
	"github.com/kontext-io/kontext/internal/store/memory"
	"github.com/kontext-io/kontext/internal/usecase/retrieval"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New(memory.Config{MaxSize: 100, Evict: true, ChunkSize: 10}, zap.NewNop())
	svc := retrieval.New(store, zap.NewNop())

	r := chi.NewRouter()
	NewServer(svc).Register(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, decoded
}

func createContextBody(title string, tags []string) map[string]any {
	return map[string]any{
		"kind":            "example",
		"title":           title,
		"content":         "transfer validates the destination before moving the balance",
		"tags":            tags,
		"domain_category": "token",
		"base_score":      0.8,
	}
}

func mustCreateContext(t *testing.T, ts *httptest.Server, title string, tags []string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/contexts", createContextBody(title, tags))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create response has no id: %v", body)
	}
	return id
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestCreateAndGetContext(t *testing.T) {
	ts := newTestServer(t)
	id := mustCreateContext(t, ts, "Minimal token contract", []string{"token", "mint"})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/contexts/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if body["title"] != "Minimal token contract" || body["kind"] != "example" {
		t.Errorf("unexpected record: %v", body)
	}
	if body["created_at"] == nil || body["updated_at"] == nil {
		t.Error("timestamps missing from response")
	}
}

func TestGetContext_NotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/contexts/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != "not_found" {
		t.Errorf("code = %v, want not_found", body["code"])
	}
}

func TestCreateContext_Invalid(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/contexts", map[string]any{
		"kind":    "bogus",
		"title":   "t",
		"content": "c",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "validation_failed" {
		t.Errorf("code = %v, want validation_failed", body["code"])
	}
}

func TestUpdateContext(t *testing.T) {
	ts := newTestServer(t)
	id := mustCreateContext(t, ts, "Old title", []string{"token"})

	resp, body := doJSON(t, http.MethodPatch, ts.URL+"/v1/contexts/"+id, map[string]any{
		"title": "New title",
		"tags":  []string{"token", "mint"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body = %v", resp.StatusCode, body)
	}
	if body["title"] != "New title" {
		t.Errorf("title = %v, want New title", body["title"])
	}
	if body["content"] == "" {
		t.Error("content must survive a partial update")
	}

	// Empty patch is rejected.
	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/v1/contexts/"+id, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestDeleteContext(t *testing.T) {
	ts := newTestServer(t)
	id := mustCreateContext(t, ts, "Disposable", nil)

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/v1/contexts/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/contexts/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestQueryContexts(t *testing.T) {
	ts := newTestServer(t)
	mustCreateContext(t, ts, "Token example", []string{"token"})
	mustCreateContext(t, ts, "NFT example", []string{"nft"})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/contexts?tags=token&limit=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d", resp.StatusCode)
	}
	contexts, _ := body["contexts"].([]any)
	if len(contexts) != 1 {
		t.Fatalf("got %d contexts, want 1: %v", len(contexts), body)
	}
	if total, _ := body["total"].(float64); total != 1 {
		t.Errorf("total = %v, want 1", body["total"])
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/contexts?limit=nope", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestSimilarContexts(t *testing.T) {
	ts := newTestServer(t)
	src := mustCreateContext(t, ts, "Token example", []string{"token", "mint"})
	mustCreateContext(t, ts, "Related token note", []string{"token"})
	mustCreateContext(t, ts, "Unrelated NFT note", []string{"nft"})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/contexts/"+src+"/similar?k=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("similar status = %d", resp.StatusCode)
	}
	contexts, _ := body["contexts"].([]any)
	if len(contexts) != 1 {
		t.Fatalf("got %d contexts, want 1", len(contexts))
	}
	first, _ := contexts[0].(map[string]any)
	if first["title"] != "Related token note" {
		t.Errorf("most similar = %v, want the shared-tag record", first["title"])
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/contexts/"+src+"/similar?k=oops", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid k status = %d, want 400", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)
	mustCreateContext(t, ts, "One", []string{"token"})
	mustCreateContext(t, ts, "Two", []string{"token", "mint"})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	if total, _ := body["total"].(float64); total != 2 {
		t.Errorf("total = %v, want 2", body["total"])
	}
	byTag, _ := body["by_tag"].(map[string]any)
	if count, _ := byTag["token"].(float64); count != 2 {
		t.Errorf("by_tag[token] = %v, want 2", byTag["token"])
	}
}

func TestEnhanceQuery(t *testing.T) {
	ts := newTestServer(t)
	mustCreateContext(t, ts, "Balance checks", []string{"balance"})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/enhance", map[string]any{
		"text": "how should I validate a transfer",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enhance status = %d, body = %v", resp.StatusCode, body)
	}
	text, _ := body["text"].(string)
	if text == "" {
		t.Fatal("enhance returned empty text")
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/enhance", map[string]any{"text": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank text status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestHandleError_LogsViaRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	reqLogger := zap.New(core)

	req := httptest.NewRequest(http.MethodGet, "/v1/contexts", http.NoBody)
	req = req.WithContext(logpkg.ContextWithLogger(req.Context(), reqLogger))
	rr := httptest.NewRecorder()

	s := NewServer(nil)
	s.handleError(rr, req, errors.New("backend exploded"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry on the request logger, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "unhandled error" {
		t.Errorf("message = %q, want %q", entry.Message, "unhandled error")
	}
}
