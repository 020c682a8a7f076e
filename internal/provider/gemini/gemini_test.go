package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeSender struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeSender) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func TestSessionSend(t *testing.T) {
	fake := &fakeSender{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: "[PUZZLE] Which year?"}}},
		}},
	}}
	s := &Session{chat: fake}

	got, err := s.Send(context.Background(), "make a puzzle")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "[PUZZLE] Which year?" {
		t.Errorf("got %q", got)
	}
	if len(fake.parts) != 1 || fake.parts[0].Text != "make a puzzle" {
		t.Errorf("parts = %+v", fake.parts)
	}
}

func TestSessionSendErrors(t *testing.T) {
	s := &Session{chat: &fakeSender{err: errors.New("quota")}}
	if _, err := s.Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}

	s = &Session{chat: &fakeSender{}}
	if _, err := s.Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error for nil response")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
