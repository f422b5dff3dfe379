package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/quantumiracle/tiktok-apify/internal/model"
	"github.com/quantumiracle/tiktok-apify/internal/store"
	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

// --- Apify Client Mock ---

type mockClient struct {
	mock.Mock
}

func (m *mockClient) StartRun(ctx context.Context, actorID string, input any) (*apify.Run, error) {
	args := m.Called(ctx, actorID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.Run), args.Error(1)
}

func (m *mockClient) GetRun(ctx context.Context, runID string) (*apify.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.Run), args.Error(1)
}

func (m *mockClient) DatasetItems(ctx context.Context, datasetID string, limit int) ([]apify.Item, error) {
	args := m.Called(ctx, datasetID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]apify.Item), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, topics []string, params model.RunParams) (*model.Run, error) {
	args := m.Called(ctx, topics, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) UpdateRunSummary(ctx context.Context, runID string, summary *model.RunSummary) error {
	args := m.Called(ctx, runID, summary)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) SaveTopicResult(ctx context.Context, runID string, result model.TopicResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) ListTopicResults(ctx context.Context, runID string) ([]model.TopicResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TopicResult), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ apify.Client = (*mockClient)(nil)
	_ store.Store  = (*mockStore)(nil)
)
