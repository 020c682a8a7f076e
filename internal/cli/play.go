package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/playperu/cityescape/internal/cityescape"
	"github.com/playperu/cityescape/internal/config"
	"github.com/playperu/cityescape/internal/database"
	"github.com/playperu/cityescape/internal/game"
	"github.com/playperu/cityescape/internal/migrations"
	"github.com/playperu/cityescape/internal/provider"
	"github.com/playperu/cityescape/internal/scene"
	"github.com/playperu/cityescape/internal/server"
	"github.com/playperu/cityescape/internal/speech"
	"github.com/playperu/cityescape/internal/stages"
)

const playHelp = `Commands:
  /hint            ask for a hint
  /scan LAT LNG    look up the building at a position
  /skip            skip the current stage
  /end             end the mission now
  /quit            leave without finishing
Anything else is an answer.`

func init() {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a session in the terminal",
		Long:  "Play a session in the terminal. Puzzles and narration are printed; answers are read from stdin.\n\n" + playHelp,
		Args:  cobra.NoArgs,
		RunE:  runPlay,
	}
	cmd.Flags().StringP("player", "p", "terminal", "Player name recorded with the run")
	cmd.Flags().Bool("record", false, "Record the finished run in the run history database")
	cmd.Flags().Bool("paced", false, "Wait out camera flights and transitions like the browser does")

	RootCmd.AddCommand(cmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	player, _ := cmd.Flags().GetString("player")
	record, _ := cmd.Flags().GetBool("record")
	paced, _ := cmd.Flags().GetBool("paced")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	file := getStagesFile()
	if file == "" {
		file = cfg.StagesFile
	}
	catalog, err := stages.Load(file)
	if err != nil {
		return fmt.Errorf("loading stages: %w", err)
	}
	models, err := provider.NewModels(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sc := scene.Config{PickRadius: cfg.Pacing.PickRadius}
	if paced {
		sc.Flight = cfg.Pacing.Flight
		sc.Transition = cfg.Pacing.Transition
		sc.Weather = cfg.Pacing.Weather
	}

	// The terminal has no audio sink; narration is read, not heard.
	seq := speech.New(speech.Silent{}, speech.PacedPlayer{}, logger)
	defer seq.Stop()

	hooks := &terminalHooks{w: out}
	o := game.New(game.Config{
		Stages:    catalog,
		NewEngine: func() game.Engine { return models.NewEngine() },
		Speech:    seq,
		Scene:     scene.New(catalog, sc, nil),
		Hooks:     hooks,
		Logger:    logger,
	})
	defer o.Interrupt()

	fmt.Fprintf(out, "City Escape: %d stages. Type /help for commands.\n\n", len(catalog))
	if err := o.StartGame(ctx); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}

	if err := playLoop(ctx, o, cmd.InOrStdin(), out); err != nil {
		return err
	}

	snap := o.Snapshot()
	if snap.Summary == nil {
		fmt.Fprintln(out, "Mission abandoned.")
		return nil
	}
	if record {
		if err := recordRun(ctx, player, *snap.Summary); err != nil {
			return err
		}
		fmt.Fprintln(out, "Run recorded.")
	}
	return nil
}

// playLoop feeds stdin lines to the orchestrator until the session
// finishes, input ends or the player quits.
func playLoop(ctx context.Context, o *game.Orchestrator, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for o.Snapshot().State != game.StateFinished {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, playHelp)
		case "/hint":
			o.RequestHint(ctx)
		case "/scan":
			scan(o, fields[1:], out)
		default:
			o.SubmitAnswer(ctx, line)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func scan(o *game.Orchestrator, args []string, out io.Writer) {
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: /scan LAT LNG")
		return
	}
	lat, err1 := strconv.ParseFloat(args[0], 64)
	lng, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		fmt.Fprintln(out, "usage: /scan LAT LNG")
		return
	}
	if _, ok := o.Inspect(cityescape.LatLng{Lat: lat, Lng: lng}); !ok {
		fmt.Fprintln(out, "Nothing there.")
	}
}

func recordRun(ctx context.Context, player string, sum cityescape.Summary) error {
	db, err := database.Open(ctx, getDBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := migrations.Run(db); err != nil {
		return err
	}

	id := ulid.Make().String()
	return server.NewSQLiteRunStore(db).RecordRun(ctx, server.Run{
		ID:         id,
		SessionID:  "cli-" + id,
		Player:     player,
		Summary:    sum,
		FinishedAt: time.Now(),
	})
}

// terminalHooks prints the message log as it grows.
type terminalHooks struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *terminalHooks) Message(m game.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch m.Kind {
	case game.MessagePlayer:
		return
	case game.MessageStage:
		fmt.Fprintf(h.w, "\n== %s ==\n", m.Text)
	default:
		fmt.Fprintf(h.w, "[%s] %s\n", m.Kind, m.Text)
	}
}

func (h *terminalHooks) Cue(game.Cue) {}

func (h *terminalHooks) StateChanged(game.State) {}

func (h *terminalHooks) Finished(sum cityescape.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.w, "\nMission complete: rank %s, %s, %d hints, %d/%d stages.\n",
		sum.Rank, sum.Elapsed.Round(time.Second), sum.HintsUsed, sum.StagesCleared, sum.StageCount)
}

