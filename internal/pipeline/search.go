package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

// SearchTopic discovers the accounts posting under one topic hashtag.
// Every returned video contributes its author, deduplicated in first-seen
// order so later truncation is reproducible. Records without an author
// identifier are skipped, not failed. A topic yielding no accounts is a
// valid outcome: empty slice, nil error.
func SearchTopic(ctx context.Context, client apify.Client, actorID, topic string, resultsPerPage int, aliases *AliasTable, opts ...apify.PollOption) ([]string, error) {
	input := map[string]any{
		"hashtags":             []string{topic},
		"resultsPerPage":       resultsPerPage,
		"proxyCountryCode":     "None",
		"shouldDownloadVideos": false,
	}

	items, err := apify.RunAndCollect(ctx, client, actorID, input, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: search topic %q", topic)
	}

	seen := make(map[string]struct{}, len(items))
	usernames := make([]string, 0, len(items))
	skipped := 0
	for _, item := range items {
		username := stringField(item, aliases.Username)
		if username == "" {
			skipped++
			continue
		}
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}
		usernames = append(usernames, username)
	}

	if skipped > 0 {
		zap.L().Debug("pipeline: search records without author identifier",
			zap.String("topic", topic),
			zap.Int("skipped", skipped))
	}

	return usernames, nil
}
