package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/cityescape/internal/cityescape"
)

// Command is a player action sent over the session websocket.
type Command struct {
	Type   string  `json:"type"`
	Answer string  `json:"answer,omitempty"`
	Muted  bool    `json:"muted,omitempty"`
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
}

const (
	CommandAnswer    = "answer"
	CommandHint      = "hint"
	CommandSkipVoice = "skip_voice"
	CommandMute      = "mute"
	CommandPick      = "pick"
	CommandRestart   = "restart"
)

// handleSessionWS carries session events out and player commands in over
// one connection.
func handleSessionWS(logger *slog.Logger, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()

		ch := broker.Subscribe(s.ID)
		defer broker.Unsubscribe(s.ID, ch)

		go func() {
			defer cancel()
			for {
				var cmd Command
				if err := wsjson.Read(ctx, conn, &cmd); err != nil {
					logger.Debug("websocket read ended", "error", err)
					return
				}
				dispatch(ctx, s, conn, cmd)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case data, ok := <-ch:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "session closed")
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}

func dispatch(ctx context.Context, s *Session, conn *websocket.Conn, cmd Command) {
	switch cmd.Type {
	case CommandAnswer:
		answer := cmd.Answer
		s.Go(func(ctx context.Context) { s.game.SubmitAnswer(ctx, answer) })
	case CommandHint:
		s.Go(s.game.RequestHint)
	case CommandSkipVoice:
		s.game.SkipVoice()
	case CommandMute:
		s.game.SetMuted(cmd.Muted)
	case CommandPick:
		// A hit is broadcast as a building message; misses are silent.
		s.game.Inspect(cityescape.LatLng{Lat: cmd.Lat, Lng: cmd.Lng})
	case CommandRestart:
		s.Start()
	default:
		wsjson.Write(ctx, conn, Event{Type: "error", Data: "unknown command " + cmd.Type})
	}
}
