package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKeyCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the OpenAI API key",
	}

	cmd.AddCommand(newKeySetCmd(app), newKeyRemoveCmd(app), newKeyStatusCmd(app))

	return cmd
}

func newKeySetCmd(app *app) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the API key in the secret store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.session.SaveCredential(cmd.Context(), value); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
			return err
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "API key value")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newKeyRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the API key from the secret store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.session.RemoveCredential(cmd.Context()); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "API key removed.")
			return err
		},
	}
}

func newKeyStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether an API key is saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.start(cmd.Context())

			status := "not set"
			if app.session.HasCredential() {
				status = "saved"
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "API key: %s (%s)\n", status, app.session.CredentialKey())
			return err
		},
	}
}
