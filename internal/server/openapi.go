package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/cityescape/internal/cityescape"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each checked dependency to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type sessionPath struct {
	ID string `path:"id"`
}

type answerInput struct {
	sessionPath
	AnswerRequest
}

type muteInput struct {
	sessionPath
	MuteRequest
}

type pickInput struct {
	sessionPath
	PickRequest
}

type runsQuery struct {
	Limit int `query:"limit" minimum:"1" maximum:"100"`
}

type runPath struct {
	RunID string `path:"runID"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resps                              []response
}

type response struct {
	body        any
	status      int
	contentType string
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "City Escape API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the AI-narrated city escape game.")

	notFound := response{ErrorResponse{}, http.StatusNotFound, ""}
	badRequest := response{ErrorResponse{}, http.StatusBadRequest, ""}
	accepted := response{StatusResponse{}, http.StatusAccepted, ""}

	ops := []operation{
		{http.MethodGet, "/healthz", "Health check", "Returns the health status of backend dependencies.", nil,
			[]response{{HealthResponse{}, http.StatusOK, ""}, {HealthResponse{}, http.StatusServiceUnavailable, ""}}},
		{http.MethodGet, "/api/stages", "List stages", "Returns the stage catalog in play order.", nil,
			[]response{{[]cityescape.Stage{}, http.StatusOK, ""}}},
		{http.MethodGet, "/api/runs", "List runs", "Returns completed runs, best rank first.", runsQuery{},
			[]response{{[]RunResponse{}, http.StatusOK, ""}, badRequest}},
		{http.MethodGet, "/api/runs/{runID}", "Get run", "Returns one completed run.", runPath{},
			[]response{{RunResponse{}, http.StatusOK, ""}, notFound}},
		{http.MethodPost, "/api/sessions", "Create session", "Creates a game session and starts booting it in the background.", CreateSessionRequest{},
			[]response{{CreateSessionResponse{}, http.StatusCreated, ""}, badRequest, {ErrorResponse{}, http.StatusTooManyRequests, ""}}},
		{http.MethodGet, "/api/sessions/{id}", "Get session", "Returns the session snapshot including the message log.", sessionPath{},
			[]response{{SessionResponse{}, http.StatusOK, ""}, notFound}},
		{http.MethodDelete, "/api/sessions/{id}", "Delete session", "Interrupts the session and disconnects its subscribers.", sessionPath{},
			[]response{{nil, http.StatusNoContent, ""}, notFound}},
		{http.MethodPost, "/api/sessions/{id}/restart", "Restart session", "Starts a fresh game in the same session.", sessionPath{},
			[]response{accepted, notFound}},
		{http.MethodPost, "/api/sessions/{id}/answer", "Submit answer", "Queues an answer for judgment. \"/skip\" and \"/end\" interrupt the running flow.", answerInput{},
			[]response{accepted, badRequest, notFound}},
		{http.MethodPost, "/api/sessions/{id}/hint", "Request hint", "Asks for the next hint level.", sessionPath{},
			[]response{accepted, notFound}},
		{http.MethodPost, "/api/sessions/{id}/voice/skip", "Skip narration", "Cuts the current narration short.", sessionPath{},
			[]response{{nil, http.StatusNoContent, ""}, notFound}},
		{http.MethodPost, "/api/sessions/{id}/voice/mute", "Mute narration", "Turns voice narration off or on.", muteInput{},
			[]response{{MuteResponse{}, http.StatusOK, ""}, badRequest, notFound}},
		{http.MethodPost, "/api/sessions/{id}/pick", "Scan building", "Returns the building nearest a map position.", pickInput{},
			[]response{{cityescape.Building{}, http.StatusOK, ""}, badRequest, notFound}},
		{http.MethodGet, "/api/sessions/{id}/events", "SSE event stream", "Server-Sent Events stream of session events.", sessionPath{},
			[]response{{nil, http.StatusOK, "text/event-stream"}, notFound}},
		{http.MethodGet, "/api/sessions/{id}/ws", "Session websocket", "Upgrades to a WebSocket carrying session events out and commands in.", sessionPath{},
			[]response{{nil, http.StatusSwitchingProtocols, "text/plain"}, notFound}},
	}

	for _, op := range ops {
		oc, _ := r.NewOperationContext(op.method, op.path)
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		for _, resp := range op.resps {
			opts := []openapi.ContentOption{openapi.WithHTTPStatus(resp.status)}
			if resp.contentType != "" {
				opts = append(opts, openapi.WithContentType(resp.contentType))
			}
			oc.AddRespStructure(resp.body, opts...)
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
