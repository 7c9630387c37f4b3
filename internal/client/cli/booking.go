package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/client/client"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
)

func newBookCmd(app *App) *cobra.Command {
	var (
		start, end string
		tutor      string
		key        string
		retries    uint64
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a scheduled session",
		Long: "Book a scheduled session between --start and --end (RFC 3339).\n" +
			"The idempotency key defaults to a fresh UUID and is reused across transport retries,\n" +
			"so a retried booking never charges twice.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startAt, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endAt, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if key == "" {
				key = uuid.NewString()
			}

			req := &api.BookRequest{
				StartTime:      startAt.UTC(),
				EndTime:        endAt.UTC(),
				IdempotencyKey: key,
			}
			if tutor != "" {
				req.TutorID = &tutor
			}

			return app.withClient(func(c client.Client) error {
				var res *client.BookResult
				b := retry.WithMaxRetries(retries, retry.NewExponential(500*time.Millisecond))
				err := retry.Do(cmd.Context(), b, func(ctx context.Context) error {
					cctx, cancel := app.callContext(ctx)
					defer cancel()
					r, err := c.Book(cctx, req)
					if errors.Is(err, client.ErrUnavailable) {
						return retry.RetryableError(err)
					}
					if err != nil {
						return err
					}
					res = r
					return nil
				})
				if err != nil {
					return fmt.Errorf("book (idempotency key %s): %w", key, err)
				}

				if res.Replayed {
					fmt.Fprintf(cmd.ErrOrStderr(), "replayed earlier booking for key %s\n", key)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(res.Body)))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "session start (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "session end (RFC 3339)")
	cmd.Flags().StringVar(&tutor, "tutor", "", "tutor id (optional)")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (default: random UUID)")
	cmd.Flags().Uint64Var(&retries, "retries", 3, "transport retries")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func newTransitionCmd(app *App) *cobra.Command {
	var from, to, reason string

	cmd := &cobra.Command{
		Use:   "transition <session-id>",
		Short: "Move a scheduled session to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withClient(func(c client.Client) error {
				ctx, cancel := app.callContext(cmd.Context())
				defer cancel()

				view, err := c.Transition(ctx, &api.TransitionRequest{
					SessionID:  args[0],
					FromStatus: strings.ToUpper(from),
					ToStatus:   strings.ToUpper(to),
					Reason:     reason,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s is now %s\n", view.ID, view.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "expected current status")
	cmd.Flags().StringVar(&to, "to", "", "target status")
	cmd.Flags().StringVar(&reason, "reason", "", "audit note")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
