package cmd

import (
	"fmt"
	"os"

	"github.com/bnema/nexus-cli/internal/adapters/tui/chat"
	"github.com/spf13/cobra"
)

func Execute() error {
	rootCmd, cleanup := newRootCmd()
	defer cleanup()

	return rootCmd.Execute()
}

// newRootCmd returns the command tree and a cleanup func that flushes the
// conversation history. Call cleanup once the command has run.
func newRootCmd() (*cobra.Command, func()) {
	rootCmd := &cobra.Command{
		Use:           "nexus",
		Short:         "NEXUS: chat with an OpenAI model from the terminal",
		Long:          "nexus sends your messages to the OpenAI Responses API and keeps the conversation on disk. Run it without arguments for the interactive chat screen.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd, func() {}
	}

	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		app.start(cmd.Context())
		return app.runChat(cmd.Context(), app.session, chat.Options{Model: app.model})
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAskCmd(app),
		newKeyCmd(app),
		newHistoryCmd(app),
		newConfigCmd(app),
	)

	cleanup := func() {
		if err := app.close(); err != nil {
			fmt.Fprintf(os.Stderr, "nexus: close: %v\n", err)
		}
	}

	return rootCmd, cleanup
}
