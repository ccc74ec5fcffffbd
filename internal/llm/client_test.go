package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v, want test-model", req["model"])
		}
		if req["stream"] != false {
			t.Errorf("stream = %v, want false", req["stream"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hello"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.Chat(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("Chat = %q, want %q", got, "hello")
	}
}

func TestChat_StructuredFormat(t *testing.T) {
	var gotFormat json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Format json.RawMessage `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		gotFormat = req.Format
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"action":"Final Answer"}`},
		})
	}))
	defer srv.Close()

	schema := &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"action": {Type: "string"},
		},
		Required: []string{"action"},
	}

	c := New(srv.URL)
	if _, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, schema); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotFormat == nil {
		t.Fatal("format field was not sent")
	}
	var decoded Schema
	if err := json.Unmarshal(gotFormat, &decoded); err != nil {
		t.Fatalf("unmarshalling format: %v", err)
	}
	if decoded.Type != "object" {
		t.Errorf("format type = %q, want object", decoded.Type)
	}
}

func TestChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	vec, err := c.Embed(context.Background(), "embed-model", "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dims, want 3", len(vec))
	}
	if vec[1] != 0.2 {
		t.Errorf("vec[1] = %f, want 0.2", vec[1])
	}
}

func TestEmbed_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Embed(context.Background(), "m", "text"); err == nil {
		t.Fatal("expected error on empty embeddings")
	}
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning = false, want true")
	}

	srv.Close()
	if c.IsRunning(context.Background()) {
		t.Error("IsRunning = true after server shutdown, want false")
	}
}
