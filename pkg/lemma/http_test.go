package lemma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Lemmatize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lemmatize" {
			t.Errorf("path = %q, want /lemmatize", r.URL.Path)
		}
		var req lemmatizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(lemmatizeResponse{Tokens: []Token{
			{Text: req.Text, Lemma: "conformar", POS: "VERB"},
		}})
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Name() != "test-model" {
		t.Errorf("Name = %q", c.Name())
	}

	tokens, err := c.Lemmatize(context.Background(), "conformen")
	if err != nil {
		t.Fatalf("Lemmatize: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Lemma != "conformar" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(lemmatizeResponse{Tokens: []Token{{Text: "ok"}}})
	}))
	defer srv.Close()

	c, _ := NewClient(ClientConfig{BaseURL: srv.URL})
	tokens, err := c.Lemmatize(context.Background(), "text")
	if err != nil {
		t.Fatalf("Lemmatize after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(tokens) != 1 {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewClient(ClientConfig{BaseURL: srv.URL})
	if _, err := c.Lemmatize(context.Background(), "text"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on client error)", calls)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error for missing base URL")
	}
}
