package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/client/client"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newJoinCmd(app *App) *cobra.Command {
	var (
		goal    string
		score   int
		once    bool
		asJSON  bool
		retries uint64
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the matchmaking queue and wait for a partner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withClient(func(c client.Client) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				var (
					resp *api.JoinResponse
					err  error
				)
				if once {
					cctx, cancel := app.callContext(ctx)
					resp, err = c.Join(cctx, goal, score)
					cancel()
				} else {
					resp, err = client.WaitForMatch(ctx, c, goal, score, client.PollOptions{
						Interval:    app.cfg.PollInterval,
						BaseBackoff: 500 * time.Millisecond,
						MaxBackoff:  15 * time.Second,
						MaxRetries:  retries,
						OnWait: func(r *api.JoinResponse) {
							if r.SessionID != "" {
								fmt.Fprintf(cmd.ErrOrStderr(), "waiting (session %s pending)...\n", r.SessionID)
								return
							}
							fmt.Fprintln(cmd.ErrOrStderr(), "waiting for a partner...")
						},
					})
				}

				if errors.Is(err, context.Canceled) {
					withdrawFromQueue(app, c, cmd.ErrOrStderr())
				}
				if err != nil {
					return err
				}

				if asJSON {
					return printJSON(out, resp)
				}
				if !resp.Matched {
					fmt.Fprintln(out, "waiting")
					return nil
				}
				fmt.Fprintf(out, "matched with %s\nsession: %s\nroom: %s\ncredential: %s\n",
					resp.Partner, resp.SessionID, resp.Room, resp.Credential)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&goal, "goal", "", "practice goal")
	cmd.Flags().IntVar(&score, "score", 0, "skill score")
	cmd.Flags().BoolVar(&once, "once", false, "poll a single time instead of waiting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	cmd.Flags().Uint64Var(&retries, "retries", 8, "transport retries before giving up")

	return cmd
}

// withdrawFromQueue is run after an interrupted wait so the actor does not
// linger in the pool.
func withdrawFromQueue(app *App, c client.Client, w io.Writer) {
	ctx, cancel := app.callContext(context.Background())
	defer cancel()
	if _, err := c.CancelQueue(ctx); err != nil {
		fmt.Fprintf(w, "could not leave the queue: %v\n", err)
	}
}

func newCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Leave the matchmaking queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withClient(func(c client.Client) error {
				ctx, cancel := app.callContext(cmd.Context())
				defer cancel()

				removed, err := c.CancelQueue(ctx)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintln(cmd.OutOrStdout(), "removed from queue")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "not queued")
				}
				return nil
			})
		},
	}
}

func newLeaveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <session-id>",
		Short: "End an ad-hoc session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withClient(func(c client.Client) error {
				ctx, cancel := app.callContext(cmd.Context())
				defer cancel()

				if err := c.Leave(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "left session", args[0])
				return nil
			})
		},
	}
}

func newPartnerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "partner <session-id>",
		Short: "Check whether the partner is still connected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withClient(func(c client.Client) error {
				ctx, cancel := app.callContext(cmd.Context())
				defer cancel()

				st, err := c.CheckPartner(ctx, args[0])
				if err != nil {
					return err
				}
				if st.PartnerLeft {
					fmt.Fprintf(cmd.OutOrStdout(), "partner left; session %s is %s\n", st.SessionID, st.Status)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "partner connected; session %s is %s\n", st.SessionID, st.Status)
				}
				return nil
			})
		},
	}
}
