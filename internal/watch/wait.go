package watch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

// Wait polls every task concurrently until all are terminal and returns
// their final states in the order of ids. A task the backend does not know
// fails the whole wait; other poll errors are retried on the next tick.
func Wait(ctx context.Context, fetch TaskFetcher, interval time.Duration, ids ...string) ([]model.Task, error) {
	if interval <= 0 {
		interval = DefaultTaskInterval
	}

	results := make([]model.Task, len(ids))
	g, ctx := errgroup.WithContext(ctx)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			t, err := waitOne(ctx, fetch, interval, id)
			if err != nil {
				return err
			}
			results[i] = *t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func waitOne(ctx context.Context, fetch TaskFetcher, interval time.Duration, id string) (*model.Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		t, err := fetch.Status(ctx, id)
		switch {
		case err == nil && t.Status.IsTerminal():
			return t, nil
		case err != nil && (api.IsNotFound(err) || ctx.Err() != nil):
			return nil, err
		case err != nil:
			util.Warn("wait: poll %s failed: %v", id, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
