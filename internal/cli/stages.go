package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/playperu/cityescape/internal/stages"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Inspect stage catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the stages that would be played",
		Args:  cobra.NoArgs,
		RunE:  runStagesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a JSON or YAML stage file against the stage schema",
		Args:  cobra.ExactArgs(1),
		RunE:  runStagesValidate,
	})

	RootCmd.AddCommand(cmd)
}

func runStagesList(cmd *cobra.Command, args []string) error {
	catalog, err := stages.Load(getStagesFile())
	if err != nil {
		return fmt.Errorf("loading stages: %w", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		b, _ := json.MarshalIndent(catalog, "", "  ")
		fmt.Fprintln(out, string(b))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDIFFICULTY\tBUILDINGS")
	for _, s := range catalog {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", s.ID, s.DisplayName(), s.Difficulty, len(s.Buildings))
	}
	return tw.Flush()
}

func runStagesValidate(cmd *cobra.Command, args []string) error {
	catalog, err := stages.Load(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d stages\n", args[0], len(catalog))
	return nil
}
