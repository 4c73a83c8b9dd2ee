package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPingOllama(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"gemma3:4b"},{"name":"llama3.2"}]}`))
	}))
	t.Cleanup(srv.Close)

	// The /v1 suffix from an OpenAI-compatible base URL is stripped.
	names, err := PingOllama(context.Background(), srv.URL+"/v1")
	if err != nil {
		t.Fatalf("PingOllama: %v", err)
	}
	if len(names) != 2 || names[0] != "gemma3:4b" {
		t.Fatalf("names: %v", names)
	}
}

func TestPingOllamaUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	if _, err := PingOllama(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error on 500")
	}
}
