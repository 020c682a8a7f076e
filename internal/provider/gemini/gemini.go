// Package gemini adapts Google's Gemini chat API to the engine's cloud
// model interface.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/playperu/cityescape/internal/engine"
)

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Model opens Gemini chat sessions.
type Model struct {
	client *genai.Client
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.8
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Model{client: client, cfg: cfg}, nil
}

func (m *Model) StartChat(ctx context.Context, system string) (engine.ChatSession, error) {
	chat, err := m.client.Chats.Create(ctx, m.cfg.Model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(m.cfg.Temperature),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating gemini chat: %w", err)
	}
	return &Session{chat: chat}, nil
}

type sender interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Session is one Gemini conversation; history is kept by the SDK.
type Session struct {
	chat sender
}

func (s *Session) Send(ctx context.Context, prompt string) (string, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return "", fmt.Errorf("gemini send: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini send: empty response")
	}
	return resp.Text(), nil
}
