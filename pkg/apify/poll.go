package apify

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 5 * time.Second
	defaultPollCap     = 15 * time.Second
	defaultPollTimeout = 5 * time.Minute
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial   time.Duration
	cap       time.Duration
	timeout   time.Duration
	itemLimit int
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// WithItemLimit caps how many dataset items are fetched after a run succeeds.
// Zero means no limit.
func WithItemLimit(n int) PollOption {
	return func(c *pollConfig) {
		c.itemLimit = n
	}
}

// RunAndCollect starts an actor run, polls it until it reaches a terminal
// status, and returns the items from its default dataset. Polling uses
// exponential backoff: 5s -> 10s -> 15s (capped). A run that ends FAILED,
// ABORTED, or TIMED-OUT is an error; retrying is the caller's decision.
func RunAndCollect(ctx context.Context, client Client, actorID string, input any, opts ...PollOption) ([]Item, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	run, err := client.StartRun(ctx, actorID, input)
	if err != nil {
		return nil, err
	}
	runID := run.ID

	interval := cfg.initial
	for {
		switch run.Status {
		case StatusSucceeded:
			if run.DefaultDatasetID == "" {
				return nil, eris.Errorf("apify: run %s succeeded without a default dataset", runID)
			}
			return client.DatasetItems(ctx, run.DefaultDatasetID, cfg.itemLimit)
		case StatusFailed, StatusAborted, StatusTimedOut:
			return nil, eris.Errorf("apify: actor %s run %s ended %s", actorID, runID, run.Status)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("apify: actor %s run %s did not finish", actorID, runID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}

		run, err = client.GetRun(ctx, runID)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("apify: poll run %s", runID))
		}
	}
}
