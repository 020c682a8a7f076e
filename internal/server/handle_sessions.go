package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/playperu/cityescape/internal/cityescape"
	"github.com/playperu/cityescape/internal/game"
)

type CreateSessionRequest struct {
	Player string `json:"player,omitempty"`
}

type CreateSessionResponse struct {
	ID         string `json:"id"`
	StageCount int    `json:"stageCount"`
}

type SummaryResponse struct {
	ElapsedMs     int64  `json:"elapsedMs"`
	HintsUsed     int    `json:"hintsUsed"`
	StagesCleared int    `json:"stagesCleared"`
	StageCount    int    `json:"stageCount"`
	Rank          string `json:"rank"`
	Story         string `json:"story"`
}

func newSummaryResponse(s cityescape.Summary) SummaryResponse {
	return SummaryResponse{
		ElapsedMs:     s.Elapsed.Milliseconds(),
		HintsUsed:     s.HintsUsed,
		StagesCleared: s.StagesCleared,
		StageCount:    s.StageCount,
		Rank:          s.Rank,
		Story:         s.Story,
	}
}

type SessionResponse struct {
	ID         string                `json:"id"`
	Player     string                `json:"player,omitempty"`
	State      game.State            `json:"state"`
	StageIndex int                   `json:"stageIndex"`
	StageCount int                   `json:"stageCount"`
	Stage      *cityescape.Stage     `json:"stage,omitempty"`
	HintLevel  int                   `json:"hintLevel"`
	HintsUsed  int                   `json:"hintsUsed"`
	ElapsedMs  int64                 `json:"elapsedMs"`
	Busy       bool                  `json:"busy"`
	Muted      bool                  `json:"muted"`
	Streak     cityescape.Difficulty `json:"streak"`
	Log        []game.Message        `json:"log"`
	Summary    *SummaryResponse      `json:"summary,omitempty"`
}

func newSessionResponse(s *Session) SessionResponse {
	snap := s.game.Snapshot()
	resp := SessionResponse{
		ID:         s.ID,
		Player:     s.Player,
		State:      snap.State,
		StageIndex: snap.StageIndex,
		StageCount: snap.StageCount,
		Stage:      snap.Stage,
		HintLevel:  snap.HintLevel,
		HintsUsed:  snap.HintsUsed,
		ElapsedMs:  snap.Elapsed.Milliseconds(),
		Busy:       snap.Busy,
		Muted:      s.speech.Muted(),
		Streak:     snap.Streak,
		Log:        snap.Log,
	}
	if resp.Log == nil {
		resp.Log = []game.Message{}
	}
	if snap.Summary != nil {
		sum := newSummaryResponse(*snap.Summary)
		resp.Summary = &sum
	}
	return resp
}

type StatusResponse struct {
	Status string `json:"status"`
}

func handleCreateSession(logger *slog.Logger, sessions *Registry, factory *sessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Player = strings.TrimSpace(req.Player)
		if len(req.Player) > 40 {
			writeError(w, http.StatusBadRequest, "player name too long")
			return
		}

		s := factory.New(req.Player)
		if err := sessions.Add(s); err != nil {
			if errors.Is(err, ErrSessionLimit) {
				writeError(w, http.StatusTooManyRequests, "too many active sessions")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.Start()
		logger.Info("session created", "session", s.ID, "player", s.Player)

		writeJSON(w, http.StatusCreated, CreateSessionResponse{
			ID:         s.ID,
			StageCount: len(factory.cfg.Stages),
		})
	}
}

func handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newSessionResponse(sessionFrom(r)))
	}
}

func handleRestartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r).Start() {
			writeError(w, http.StatusConflict, "session closed")
			return
		}
		writeJSON(w, http.StatusAccepted, StatusResponse{Status: "restarting"})
	}
}

func handleDeleteSession(logger *slog.Logger, sessions *Registry, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessions.Remove(sessionFrom(r).ID)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.Close()
		broker.Close(s.ID)
		logger.Info("session closed", "session", s.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}
