package store

import (
	"context"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Topic  string          `json:"topic,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for discovery runs. Topic
// results are checkpointed as each topic finishes, so an interrupted run
// can be resumed without repeating billed actor calls.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, topics []string, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunSummary(ctx context.Context, runID string, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Topic checkpoints
	SaveTopicResult(ctx context.Context, runID string, result model.TopicResult) error
	ListTopicResults(ctx context.Context, runID string) ([]model.TopicResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
