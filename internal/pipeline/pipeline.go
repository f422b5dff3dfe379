// Package pipeline turns topic keywords into filtered influencer profiles:
// per topic it searches the hashtag, retrieves profiles for the discovered
// accounts, normalizes the raw records, extracts contact emails, and
// filters. Topic failures are isolated; completed topics are checkpointed
// so an interrupted run can resume without repeating billed actor calls.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quantumiracle/tiktok-apify/internal/config"
	"github.com/quantumiracle/tiktok-apify/internal/export"
	"github.com/quantumiracle/tiktok-apify/internal/model"
	"github.com/quantumiracle/tiktok-apify/internal/resilience"
	"github.com/quantumiracle/tiktok-apify/internal/store"
	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

// Pipeline wires the discovery stages together and owns the shared
// provider plumbing: one rate limiter across all actor starts and one
// circuit breaker per actor.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	client   apify.Client
	exporter *export.Exporter
	aliases  *AliasTable
	limiter  *rate.Limiter
	breakers *resilience.ActorBreakers
	retry    resilience.RetryConfig
	pollOpts []apify.PollOption
}

// New creates a Pipeline. The config must already be validated.
func New(cfg *config.Config, st store.Store, client apify.Client) (*Pipeline, error) {
	aliases, err := LoadAliases(cfg.Pipeline.AliasFile)
	if err != nil {
		return nil, err
	}

	limit := rate.Limit(cfg.Apify.MaxRPS)
	if cfg.Apify.MaxRPS <= 0 {
		limit = rate.Inf
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.ShouldTrip = func(err error) bool {
		// User cancellation is not an actor failure.
		return !errors.Is(err, context.Canceled)
	}

	var pollOpts []apify.PollOption
	if cfg.Apify.PollIntervalSecs > 0 {
		pollOpts = append(pollOpts, apify.WithPollInterval(time.Duration(cfg.Apify.PollIntervalSecs)*time.Second))
	}

	return &Pipeline{
		cfg:      cfg,
		store:    st,
		client:   client,
		exporter: export.New(cfg.Export.OutputDir, cfg.Export.Format),
		aliases:  aliases,
		limiter:  rate.NewLimiter(limit, 1),
		breakers: resilience.NewActorBreakers(breakerCfg),
		retry:    resilience.FromRetryConfig(cfg.Pipeline.RetryMaxAttempts, cfg.Pipeline.RetryInitialBackoffMS),
		pollOpts: pollOpts,
	}, nil
}

// Run executes the discovery pipeline over topics, in input order, and
// exports the results. A failure in one topic is recorded in the report
// and does not abort the others.
func (p *Pipeline) Run(ctx context.Context, topics []string) (*model.RunReport, error) {
	if len(topics) == 0 {
		return &model.RunReport{Results: model.NewResultSet(), Errors: map[string]string{}}, nil
	}

	run, err := p.store.CreateRun(ctx, topics, p.runParams())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return p.execute(ctx, run, nil)
}

// Resume continues a stored run. Topics with a successful checkpoint are
// restored from the store instead of being billed again; topics that
// failed or never completed are re-run with the original run's parameters.
func (p *Pipeline) Resume(ctx context.Context, runID string) (*model.RunReport, error) {
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load run")
	}

	checkpoints, err := p.store.ListTopicResults(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load checkpoints")
	}

	done := make(map[string]model.TopicResult, len(checkpoints))
	for _, tr := range checkpoints {
		if !tr.Failed() {
			done[tr.Topic] = tr
		}
	}
	return p.execute(ctx, run, done)
}

func (p *Pipeline) runParams() model.RunParams {
	return model.RunParams{
		ResultsPerHashtag:   p.cfg.Search.ResultsPerHashtag,
		MaxProfilesPerTopic: p.cfg.Search.MaxProfilesPerTopic,
		RequireEmail:        p.cfg.Filter.RequireEmail,
		SearchActor:         p.cfg.Apify.SearchActor,
		ProfileActor:        p.cfg.Apify.ProfileActor,
	}
}

func (p *Pipeline) concurrency() int {
	if p.cfg.Pipeline.TopicConcurrency > 1 {
		return p.cfg.Pipeline.TopicConcurrency
	}
	return 1
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run, done map[string]model.TopicResult) (*model.RunReport, error) {
	log := zap.L().With(zap.String("run_id", run.ID))
	start := time.Now()

	report := &model.RunReport{
		RunID:   run.ID,
		Results: model.NewResultSet(),
		Errors:  make(map[string]string),
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update run status", zap.Error(statusErr))
		}
	}
	setStatus(model.RunStatusRunning)

	log.Info("pipeline: starting run",
		zap.Int("topics", len(run.Topics)),
		zap.Int("restored", len(done)),
		zap.Int("concurrency", p.concurrency()))

	// Outcomes land in input-order slots so the final ResultSet ordering
	// never depends on completion order.
	outcomes := make([]*model.TopicResult, len(run.Topics))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	for i, topic := range run.Topics {
		if tr, ok := done[topic]; ok {
			outcomes[i] = &tr
			report.Resumed = append(report.Resumed, topic)
			log.Info("pipeline: topic restored from checkpoint",
				zap.String("topic", topic),
				zap.Int("profiles", len(tr.Profiles)))
			continue
		}

		g.Go(func() error {
			result := p.runTopic(gCtx, run, topic)
			outcomes[i] = result
			if saveErr := p.store.SaveTopicResult(ctx, run.ID, *result); saveErr != nil {
				log.Warn("pipeline: failed to checkpoint topic",
					zap.String("topic", topic), zap.Error(saveErr))
			}
			return nil
		})
	}

	// Topic errors are carried in the outcomes, never through the group.
	_ = g.Wait()

	for i, topic := range run.Topics {
		result := outcomes[i]
		if result == nil {
			continue
		}
		if result.Failed() {
			report.Errors[topic] = result.Error
			continue
		}
		report.Results.Add(topic, result.Profiles)
	}

	exportReport := p.exporter.Export(report.Results)
	report.Artifacts = exportReport.Artifacts
	report.ExportErrors = exportReport.Errors

	report.Duration = time.Since(start)

	summary := report.Summary()
	if saveErr := p.store.UpdateRunSummary(ctx, run.ID, summary); saveErr != nil {
		log.Warn("pipeline: failed to save run summary", zap.Error(saveErr))
	}

	log.Info("pipeline: run finished",
		zap.String("status", string(report.Status())),
		zap.Int("topics", summary.TopicsTotal),
		zap.Int("topics_failed", summary.TopicsFailed),
		zap.Int("profiles_kept", summary.ProfilesKept),
		zap.Int("artifacts", len(report.Artifacts)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// runTopic executes search, retrieval, normalization, email annotation,
// and filtering for one topic. Failures are captured in the returned
// TopicResult, never propagated.
func (p *Pipeline) runTopic(ctx context.Context, run *model.Run, topic string) *model.TopicResult {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("topic", topic))
	start := time.Now()
	result := &model.TopicResult{Topic: topic}

	usernames, err := p.searchWithRetry(ctx, run.Params, topic)
	if err != nil {
		log.Error("pipeline: topic search failed",
			zap.String("class", resilience.ClassifyError(err)),
			zap.Error(err))
		result.Error = err.Error()
		result.CompletedAt = time.Now().UTC()
		return result
	}

	items, err := p.fetchWithRetry(ctx, run.Params, usernames)
	if err != nil {
		log.Error("pipeline: profile retrieval failed",
			zap.String("class", resilience.ClassifyError(err)),
			zap.Error(err))
		result.Error = err.Error()
		result.CompletedAt = time.Now().UTC()
		return result
	}

	profiles := NormalizeProfiles(items, topic, p.aliases)
	AnnotateEmails(profiles)
	kept := FilterProfiles(profiles, run.Params.RequireEmail)

	result.Profiles = kept
	result.CompletedAt = time.Now().UTC()

	log.Info("pipeline: topic complete",
		zap.Int("accounts", len(usernames)),
		zap.Int("profiles", len(profiles)),
		zap.Int("kept", len(kept)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return result
}

func (p *Pipeline) searchWithRetry(ctx context.Context, params model.RunParams, topic string) ([]string, error) {
	cfg := p.retry
	cfg.ShouldRetry = transientCall
	cfg.OnRetry = resilience.RetryLogger(params.SearchActor, "search")
	breaker := p.breakers.Get(params.SearchActor)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]string, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]string, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			callCtx, cancel := p.callTimeout(ctx)
			defer cancel()
			return SearchTopic(callCtx, p.client, params.SearchActor, topic, params.ResultsPerHashtag, p.aliases, p.pollOpts...)
		})
	})
}

func (p *Pipeline) fetchWithRetry(ctx context.Context, params model.RunParams, usernames []string) ([]apify.Item, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	cfg := p.retry
	cfg.ShouldRetry = transientCall
	cfg.OnRetry = resilience.RetryLogger(params.ProfileActor, "profiles")
	breaker := p.breakers.Get(params.ProfileActor)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]apify.Item, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]apify.Item, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			callCtx, cancel := p.callTimeout(ctx)
			defer cancel()
			return FetchProfiles(callCtx, p.client, params.ProfileActor, usernames, params.MaxProfilesPerTopic, p.pollOpts...)
		})
	})
}

// callTimeout bounds a single gateway invocation so one stalled actor run
// cannot block the whole pipeline.
func (p *Pipeline) callTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Apify.RunTimeoutSecs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(p.cfg.Apify.RunTimeoutSecs)*time.Second)
}

// transientCall reports whether an actor call failure is worth retrying.
// Platform 408/429/5xx responses are transient. A run the actor itself
// ended FAILED is permanent: retrying would bill another run for the same
// likely outcome. Auth and validation rejections are permanent too.
func transientCall(err error) bool {
	var apiErr *apify.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
