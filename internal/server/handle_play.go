package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/playperu/cityescape/internal/cityescape"
)

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}

type MuteResponse struct {
	Muted bool `json:"muted"`
}

type PickRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// handleAnswer accepts an answer and judges it in the background; the
// verdict arrives as session events. "/skip" and "/end" are honoured even
// while a flow is running.
func handleAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := readJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		answer := strings.TrimSpace(req.Answer)
		if answer == "" {
			writeError(w, http.StatusBadRequest, "answer is required")
			return
		}

		s := sessionFrom(r)
		if !s.Go(func(ctx context.Context) { s.game.SubmitAnswer(ctx, answer) }) {
			writeError(w, http.StatusConflict, "session closed")
			return
		}
		writeJSON(w, http.StatusAccepted, StatusResponse{Status: "accepted"})
	}
}

func handleHint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if !s.Go(s.game.RequestHint) {
			writeError(w, http.StatusConflict, "session closed")
			return
		}
		writeJSON(w, http.StatusAccepted, StatusResponse{Status: "accepted"})
	}
}

func handleVoiceSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionFrom(r).game.SkipVoice()
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleVoiceMute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MuteRequest
		if err := readJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s := sessionFrom(r)
		s.game.SetMuted(req.Muted)
		writeJSON(w, http.StatusOK, MuteResponse{Muted: s.speech.Muted()})
	}
}

func handlePick() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PickRequest
		if err := readJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
			writeError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}

		b, ok := sessionFrom(r).game.Inspect(cityescape.LatLng{Lat: req.Lat, Lng: req.Lng})
		if !ok {
			writeError(w, http.StatusNotFound, "no building at that position")
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}
