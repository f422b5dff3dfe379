package pipeline

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/quantumiracle/tiktok-apify/internal/model"
	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

const profileURLPrefix = "https://www.tiktok.com/@"

// NormalizeProfiles maps a batch of raw records onto profiles for a topic,
// keeping provider order.
func NormalizeProfiles(items []apify.Item, topic string, aliases *AliasTable) []model.Profile {
	profiles := make([]model.Profile, 0, len(items))
	for _, item := range items {
		profiles = append(profiles, NormalizeProfile(item, topic, aliases))
	}
	return profiles
}

// NormalizeProfile maps one raw provider record onto the fixed profile
// shape. It is total: a record carrying none of the known fields still
// yields a profile with defaulted fields. Records are only ever dropped
// later, at the filter.
func NormalizeProfile(item apify.Item, topic string, aliases *AliasTable) model.Profile {
	p := model.Profile{
		Topic:      topic,
		Username:   stringField(item, aliases.Username),
		Bio:        stringField(item, aliases.Bio),
		Followers:  countField(item, aliases.Followers),
		Likes:      countField(item, aliases.Likes),
		Following:  countField(item, aliases.Following),
		Friends:    countField(item, aliases.Friends),
		VideoCount: countField(item, aliases.VideoCount),
	}

	p.ProfileURL = stringField(item, aliases.ProfileURL)
	if p.ProfileURL == "" && p.Username != "" {
		p.ProfileURL = profileURLPrefix + p.Username
	}

	if p.Username == "" {
		zap.L().Debug("pipeline: record has no username", zap.String("topic", topic))
	}

	return p
}

// stringField resolves the first present alias as a string. Non-string
// values count as absent.
func stringField(item apify.Item, aliases []string) string {
	v, ok := lookupField(item, aliases)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// countField resolves the first present alias as a count. Counts are
// non-negative; anything absent, non-numeric, or negative maps to nil.
func countField(item apify.Item, aliases []string) *int64 {
	v, ok := lookupField(item, aliases)
	if !ok {
		return nil
	}
	n, ok := toCount(v)
	if !ok || n < 0 {
		return nil
	}
	return &n
}

// toCount coerces the numeric shapes the actors emit. JSON numbers decode
// as float64; some actor versions ship counts as digit strings.
func toCount(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
