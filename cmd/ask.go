package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/spf13/cobra"
)

type turnView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toTurnView(turn domain.Turn) turnView {
	return turnView{
		ID:        string(turn.ID),
		Role:      string(turn.Role),
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
	}
}

func newAskCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, app, strings.Join(args, " "), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func runAsk(cmd *cobra.Command, app *app, text string, asJSON bool) error {
	app.start(cmd.Context())

	var reply domain.Turn
	send := func(ctx context.Context) error {
		var err error
		reply, err = app.session.Send(ctx, text)
		return err
	}

	var err error
	if asJSON {
		err = send(cmd.Context())
	} else {
		err = runAskSpinner(cmd.Context(), cmd.ErrOrStderr(), "Thinking...", send)
	}
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return fmt.Errorf("%w: run `nexus key set --value <key>` first", err)
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(toTurnView(reply)); err != nil {
			return err
		}
	} else if !reply.Failed() {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), reply.Content); err != nil {
			return err
		}
	}

	if reply.Failed() {
		return errors.New(strings.TrimPrefix(reply.Content, domain.ErrorTurnPrefix))
	}

	return nil
}
