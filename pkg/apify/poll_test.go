package apify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient implements Client for testing RunAndCollect.
type fakeClient struct {
	startRunFunc     func(ctx context.Context, actorID string, input any) (*Run, error)
	getRunFunc       func(ctx context.Context, runID string) (*Run, error)
	datasetItemsFunc func(ctx context.Context, datasetID string, limit int) ([]Item, error)
}

func (f *fakeClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	return f.startRunFunc(ctx, actorID, input)
}

func (f *fakeClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	return f.getRunFunc(ctx, runID)
}

func (f *fakeClient) DatasetItems(ctx context.Context, datasetID string, limit int) ([]Item, error) {
	return f.datasetItemsFunc(ctx, datasetID, limit)
}

func TestRunAndCollect_Succeeds(t *testing.T) {
	var polls atomic.Int32
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			assert.Equal(t, "clockworks/tiktok-scraper", actorID)
			return &Run{ID: "run-1", Status: StatusReady}, nil
		},
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			assert.Equal(t, "run-1", runID)
			if polls.Add(1) < 3 {
				return &Run{ID: "run-1", Status: StatusRunning}, nil
			}
			return &Run{ID: "run-1", Status: StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
		},
		datasetItemsFunc: func(ctx context.Context, datasetID string, limit int) ([]Item, error) {
			assert.Equal(t, "ds-1", datasetID)
			return []Item{{"authorMeta": map[string]any{"name": "chef_anna"}}}, nil
		},
	}

	items, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil,
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
	)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(3), polls.Load())
}

func TestRunAndCollect_TerminalFailures(t *testing.T) {
	for _, status := range []string{StatusFailed, StatusAborted, StatusTimedOut} {
		t.Run(status, func(t *testing.T) {
			fake := &fakeClient{
				startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
					return &Run{ID: "run-2", Status: StatusReady}, nil
				},
				getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
					return &Run{ID: "run-2", Status: status}, nil
				},
			}

			_, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil,
				WithPollInterval(5*time.Millisecond),
			)
			require.Error(t, err)
			assert.Contains(t, err.Error(), status)
		})
	}
}

func TestRunAndCollect_StartError(t *testing.T) {
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return nil, &APIError{StatusCode: 401, Body: "token-not-found"}
		},
	}

	_, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestRunAndCollect_PollErrorPropagation(t *testing.T) {
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return &Run{ID: "run-3", Status: StatusReady}, nil
		},
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return nil, &APIError{StatusCode: 500, Body: "internal-error"}
		},
	}

	_, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil,
		WithPollInterval(5*time.Millisecond),
	)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestRunAndCollect_Timeout(t *testing.T) {
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return &Run{ID: "run-4", Status: StatusReady}, nil
		},
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return &Run{ID: "run-4", Status: StatusRunning}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := RunAndCollect(ctx, fake, "clockworks/tiktok-scraper", nil,
		WithPollInterval(10*time.Millisecond),
		WithPollCap(20*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunAndCollect_DefaultTimeout(t *testing.T) {
	// Verify that RunAndCollect applies a default timeout when ctx has none.
	// We override the default to a short duration to avoid a long test.
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return &Run{ID: "run-5", Status: StatusReady}, nil
		},
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			return &Run{ID: "run-5", Status: StatusRunning}, nil
		},
	}

	_, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil,
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunAndCollect_ItemLimit(t *testing.T) {
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return &Run{ID: "run-6", Status: StatusSucceeded, DefaultDatasetID: "ds-6"}, nil
		},
		getRunFunc: func(ctx context.Context, runID string) (*Run, error) {
			t.Fatal("run already terminal, no poll expected")
			return nil, nil
		},
		datasetItemsFunc: func(ctx context.Context, datasetID string, limit int) ([]Item, error) {
			assert.Equal(t, 25, limit)
			return []Item{}, nil
		},
	}

	_, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil,
		WithItemLimit(25),
	)
	require.NoError(t, err)
}

func TestRunAndCollect_MissingDataset(t *testing.T) {
	fake := &fakeClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return &Run{ID: "run-7", Status: StatusSucceeded}, nil
		},
	}

	_, err := RunAndCollect(context.Background(), fake, "clockworks/tiktok-scraper", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a default dataset")
}
