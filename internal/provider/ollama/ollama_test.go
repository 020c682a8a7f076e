package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeServer(t *testing.T, models []string, reply string, got *[]chatRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		var resp tagsResponse
		for _, m := range models {
			resp.Models = append(resp.Models, tagModel{Name: m, Model: m})
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*got = append(*got, req)
		json.NewEncoder(w).Encode(chatResponse{Message: message{Role: "assistant", Content: reply}, Done: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAvailable(t *testing.T) {
	var got []chatRequest
	tests := []struct {
		name   string
		models []string
		model  string
		want   bool
	}{
		{"exact tag", []string{"gemma3:1b"}, "gemma3:1b", true},
		{"latest suffix", []string{"phi3:latest"}, "phi3", true},
		{"not pulled", []string{"llama3:8b"}, "gemma3:1b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeServer(t, tt.models, "", &got)
			m := New(Config{Endpoint: srv.URL, Model: tt.model})
			if a := m.Available(context.Background()); a != tt.want {
				t.Errorf("Available() = %v, want %v", a, tt.want)
			}
		})
	}

	down := New(Config{Endpoint: "http://127.0.0.1:1"})
	if down.Available(context.Background()) {
		t.Error("unreachable server reported available")
	}
	if err := down.Check(context.Background()); err == nil {
		t.Error("Check() on unreachable server = nil")
	}
}

func TestSessionKeepsBoundedHistory(t *testing.T) {
	var got []chatRequest
	srv := fakeServer(t, []string{"gemma3:1b"}, "[CORRECT] yes", &got)
	m := New(Config{Endpoint: srv.URL + "/", MaxTurns: 1})

	sess, err := m.NewSession(context.Background(), "be the Operator")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"first", "second"} {
		reply, err := sess.Prompt(context.Background(), p)
		if err != nil {
			t.Fatalf("Prompt(%q): %v", p, err)
		}
		if reply != "[CORRECT] yes" {
			t.Errorf("reply = %q", reply)
		}
	}

	if len(got) != 2 {
		t.Fatalf("requests = %d, want 2", len(got))
	}
	second := got[1]
	if second.Stream {
		t.Error("stream should be false")
	}
	// system + one kept turn (user, assistant) + new user
	if len(second.Messages) != 4 {
		t.Fatalf("messages = %+v", second.Messages)
	}
	if second.Messages[0].Role != "system" || second.Messages[1].Content != "first" || second.Messages[3].Content != "second" {
		t.Errorf("unexpected history: %+v", second.Messages)
	}
}

func TestPromptErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	sess, _ := New(Config{Endpoint: srv.URL}).NewSession(context.Background(), "sys")
	if _, err := sess.Prompt(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}
