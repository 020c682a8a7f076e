package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/cityescape/internal/cityescape"
)

type RunResponse struct {
	ID         string          `json:"id"`
	Player     string          `json:"player,omitempty"`
	Summary    SummaryResponse `json:"summary"`
	FinishedAt time.Time       `json:"finishedAt"`
}

func newRunResponse(run Run) RunResponse {
	return RunResponse{
		ID:         run.ID,
		Player:     run.Player,
		Summary:    newSummaryResponse(run.Summary),
		FinishedAt: run.FinishedAt,
	}
}

func handleListStages(stages []cityescape.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stages)
	}
}

func handleListRuns(runs RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		list, err := runs.ListRuns(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp := make([]RunResponse, len(list))
		for i, run := range list {
			resp[i] = newRunResponse(run)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetRun(runs RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, newRunResponse(run))
	}
}
