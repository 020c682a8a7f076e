// Package ollama adapts a local Ollama server to the engine's edge model
// interface.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/playperu/cityescape/internal/engine"
)

type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
	// MaxTurns bounds the conversation kept per session, system prompt
	// excluded.
	MaxTurns int
}

type Model struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Model {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = "gemma3:1b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 12
	}
	return &Model{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Available reports whether the server answers and has the model pulled.
func (m *Model) Available(ctx context.Context) bool {
	models, err := m.tags(ctx)
	if err != nil {
		return false
	}
	for _, t := range models {
		if t.Name == m.cfg.Model || t.Model == m.cfg.Model || strings.TrimSuffix(t.Name, ":latest") == m.cfg.Model {
			return true
		}
	}
	return false
}

// Check satisfies health.Checker.
func (m *Model) Check(ctx context.Context) error {
	_, err := m.tags(ctx)
	return err
}

func (m *Model) tags(ctx context.Context) ([]tagModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return out.Models, nil
}

func (m *Model) NewSession(_ context.Context, system string) (engine.EdgeSession, error) {
	return &Session{model: m, system: message{Role: "system", Content: system}}, nil
}

// Session keeps a bounded chat history against the local model.
type Session struct {
	model  *Model
	system message

	mu      sync.Mutex
	history []message
}

func (s *Session) Prompt(ctx context.Context, prompt string) (string, error) {
	user := message{Role: "user", Content: prompt}

	s.mu.Lock()
	msgs := make([]message, 0, len(s.history)+2)
	msgs = append(msgs, s.system)
	msgs = append(msgs, s.history...)
	msgs = append(msgs, user)
	s.mu.Unlock()

	reply, err := s.model.chat(ctx, msgs)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.history = append(s.history, user, reply)
	if over := len(s.history) - 2*s.model.cfg.MaxTurns; over > 0 {
		s.history = s.history[over:]
	}
	s.mu.Unlock()
	return reply.Content, nil
}

func (m *Model) chat(ctx context.Context, msgs []message) (message, error) {
	body, err := json.Marshal(chatRequest{Model: m.cfg.Model, Messages: msgs, Stream: false})
	if err != nil {
		return message{}, fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return message{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return message{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return message{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(b))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return message{}, fmt.Errorf("decoding response: %w", err)
	}
	return out.Message, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

type tagModel struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type tagsResponse struct {
	Models []tagModel `json:"models"`
}
