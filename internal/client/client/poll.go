package client

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/sethvargo/go-retry"
)

// PollOptions tunes WaitForMatch.
type PollOptions struct {
	// Interval is the delay between polls while waiting, jittered by
	// PollJitterPercent.
	Interval time.Duration
	// BaseBackoff, MaxBackoff and MaxRetries bound the exponential backoff
	// applied when the server is unreachable.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxRetries  uint64
	// OnWait is called with every waiting answer.
	OnWait func(*api.JoinResponse)
}

// PollJitterPercent spreads each poll by up to this share of Interval, so
// two actors that start polling together drift apart and can be paired.
const PollJitterPercent = 20

func (o PollOptions) pollDelays() retry.Backoff {
	interval := o.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return retry.WithJitterPercent(PollJitterPercent, retry.NewConstant(interval))
}

func (o PollOptions) backoff() retry.Backoff {
	b := retry.NewExponential(o.BaseBackoff)
	b = retry.WithCappedDuration(o.MaxBackoff, b)
	return retry.WithMaxRetries(o.MaxRetries, b)
}

// WaitForMatch polls Join until the actor is matched. A waiting answer is
// retried after a jittered interval; only transport failures back off.
// Business errors end the loop immediately.
func WaitForMatch(ctx context.Context, c Client, goal string, score int, opts PollOptions) (*api.JoinResponse, error) {
	delays := opts.pollDelays()
	for {
		var resp *api.JoinResponse
		err := retry.Do(ctx, opts.backoff(), func(ctx context.Context) error {
			r, err := c.Join(ctx, goal, score)
			if errors.Is(err, ErrUnavailable) {
				return retry.RetryableError(err)
			}
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		if resp.Matched {
			return resp, nil
		}
		if opts.OnWait != nil {
			opts.OnWait(resp)
		}

		wait, _ := delays.Next()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
