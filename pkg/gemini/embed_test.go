package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *EmbedClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmbedClient("test-key", "test-model").WithBaseURL(srv.URL)
}

func TestEmbedDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/test-model:embedContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.TaskType != TaskDocument {
			t.Errorf("task type = %q", req.TaskType)
		}
		if req.Content.Parts[0].Text != "hello" {
			t.Errorf("text = %q", req.Content.Parts[0].Text)
		}

		json.NewEncoder(w).Encode(embedResponse{Embedding: embedValues{Values: []float32{0.1, 0.2, 0.3}}})
	})

	vec, err := c.EmbedDocument(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedDocument: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedQueryTaskType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TaskType != TaskQuery {
			t.Errorf("task type = %q, want %q", req.TaskType, TaskQuery)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: embedValues{Values: []float32{1}}})
	})

	if _, err := c.EmbedQuery(context.Background(), "who"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	})

	if _, err := c.EmbedDocument(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on empty embedding")
	}
}

func TestEmbedStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	})

	if _, err := c.EmbedDocument(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestEmbedBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":batchEmbedContents") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req batchEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		resp := batchEmbedResponse{}
		for range req.Requests {
			resp.Embeddings = append(resp.Embeddings, embedValues{Values: []float32{1, 2}})
		}
		json.NewEncoder(w).Encode(resp)
	})

	out, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d embeddings", len(out))
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(batchEmbedResponse{Embeddings: []embedValues{{Values: []float32{1}}}})
	})

	if _, err := c.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	c := NewEmbedClient("k", "")
	out, err := c.EmbedBatch(context.Background(), nil)
	if err != nil || out != nil {
		t.Fatalf("empty batch: out=%v err=%v", out, err)
	}
}
