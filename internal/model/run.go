package model

import "time"

// RunStatus represents the current state of a discovery run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial" // some topics failed, others produced results
	RunStatusFailed   RunStatus = "failed"
)

// RunParams captures the knobs a run was started with, so a resumed run
// behaves like the original.
type RunParams struct {
	ResultsPerHashtag   int    `json:"results_per_hashtag"`
	MaxProfilesPerTopic int    `json:"max_profiles_per_topic"`
	RequireEmail        bool   `json:"require_email"`
	SearchActor         string `json:"search_actor"`
	ProfileActor        string `json:"profile_actor"`
}

// Run represents a single discovery run over a set of topics.
type Run struct {
	ID        string      `json:"id"`
	Topics    []string    `json:"topics"`
	Params    RunParams   `json:"params"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the final outcome of a run.
type RunSummary struct {
	TopicsTotal  int               `json:"topics_total"`
	TopicsFailed int               `json:"topics_failed"`
	ProfilesKept int               `json:"profiles_kept"`
	Errors       map[string]string `json:"errors,omitempty"`
	Artifacts    []string          `json:"artifacts,omitempty"`
	ExportErrors map[string]string `json:"export_errors,omitempty"`
	DurationMS   int64             `json:"duration_ms"`
}

// Status derives the terminal run status a summary describes.
func (s *RunSummary) Status() RunStatus {
	switch {
	case s.TopicsFailed == 0:
		return RunStatusComplete
	case s.TopicsFailed >= s.TopicsTotal:
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// TopicResult is the checkpointed outcome for one topic within a run.
type TopicResult struct {
	Topic       string    `json:"topic"`
	Profiles    []Profile `json:"profiles"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Failed reports whether the topic ended in error.
func (tr *TopicResult) Failed() bool {
	return tr.Error != ""
}

// RunReport is the in-memory outcome of a pipeline run.
type RunReport struct {
	RunID        string
	Results      *ResultSet
	Errors       map[string]string // topic -> failure message
	Artifacts    []string          // files written by the exporter
	ExportErrors map[string]string // artifact -> failure message
	Resumed      []string          // topics restored from a previous run
	Duration     time.Duration
}

// Status derives the run's terminal status from per-topic outcomes.
func (r *RunReport) Status() RunStatus {
	return r.Summary().Status()
}

// Summary converts the report into its persistable form.
func (r *RunReport) Summary() *RunSummary {
	s := &RunSummary{
		TopicsFailed: len(r.Errors),
		Errors:       r.Errors,
		Artifacts:    r.Artifacts,
		ExportErrors: r.ExportErrors,
		DurationMS:   r.Duration.Milliseconds(),
	}
	if r.Results != nil {
		s.TopicsTotal = len(r.Results.Topics())
		s.ProfilesKept = r.Results.Len()
	}
	s.TopicsTotal += len(r.Errors)
	return s
}
