package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/nexus-cli/internal/adapters/render/transcript"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the saved conversation",
	}

	cmd.AddCommand(newHistoryShowCmd(app), newHistoryClearCmd(app))

	return cmd
}

func newHistoryShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			turns := app.history.Load(cmd.Context())

			if asJSON {
				views := make([]turnView, 0, len(turns))
				for _, turn := range turns {
					views = append(views, toTurnView(turn))
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			output, err := app.transcriptRenderer(turns, transcript.RenderOptions{Title: "NEXUS history"})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newHistoryClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.session.Clear()

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return err
		},
	}
}
