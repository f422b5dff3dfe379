package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

// FetchProfiles retrieves raw profile records for usernames, truncated to
// the first maxProfiles entries of the input, so the same discovery order
// always requests the same subset. An empty username list returns nil
// without starting a billed actor run.
func FetchProfiles(ctx context.Context, client apify.Client, actorID string, usernames []string, maxProfiles int, opts ...apify.PollOption) ([]apify.Item, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	if maxProfiles > 0 && len(usernames) > maxProfiles {
		zap.L().Debug("pipeline: truncating profile lookup",
			zap.Int("discovered", len(usernames)),
			zap.Int("max_profiles", maxProfiles))
		usernames = usernames[:maxProfiles]
	}

	input := map[string]any{
		"profiles":                      usernames,
		"resultsPerPage":                1,
		"shouldDownloadCovers":          false,
		"shouldDownloadSlideshowImages": false,
		"shouldDownloadSubtitles":       false,
		"shouldDownloadVideos":          false,
	}

	items, err := apify.RunAndCollect(ctx, client, actorID, input, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch profiles")
	}
	return items, nil
}
