package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/playperu/cityescape/internal/database"
	"github.com/playperu/cityescape/internal/migrations"
	"github.com/playperu/cityescape/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, best first",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := database.Open(cmd.Context(), getDBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := migrations.Run(db); err != nil {
		return err
	}

	runs, err := server.NewSQLiteRunStore(db).ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		b, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Fprintln(out, string(b))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTIME\tHINTS\tSTAGES\tPLAYER\tFINISHED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d/%d\t%s\t%s\n",
			r.Summary.Rank, r.Summary.Elapsed.Round(time.Second), r.Summary.HintsUsed,
			r.Summary.StagesCleared, r.Summary.StageCount, r.Player,
			r.FinishedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
