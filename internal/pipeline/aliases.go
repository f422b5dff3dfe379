package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

// AliasTable maps each normalized profile field to the provider keys that
// may carry it, in lookup order. Nested keys use dots ("authorMeta.name").
// The search and profile actors disagree on field names and occasionally
// rename them between versions, so the table is data, not code.
type AliasTable struct {
	Username   []string `yaml:"username"`
	Followers  []string `yaml:"followers"`
	Likes      []string `yaml:"likes"`
	Following  []string `yaml:"following"`
	Friends    []string `yaml:"friends"`
	VideoCount []string `yaml:"video_count"`
	Bio        []string `yaml:"bio"`
	ProfileURL []string `yaml:"profile_url"`
}

// DefaultAliases returns the chains covering the known response shapes of
// the clockworks search and profile actors.
func DefaultAliases() *AliasTable {
	return &AliasTable{
		Username:   []string{"authorMeta.name", "uniqueId", "nickname", "userInfo.user.uniqueId"},
		Followers:  []string{"authorMeta.fans", "fans", "authorMeta.followers", "followers"},
		Likes:      []string{"authorMeta.heart", "heart", "likes", "diggCount"},
		Following:  []string{"authorMeta.following", "following"},
		Friends:    []string{"authorMeta.friends", "friends"},
		VideoCount: []string{"authorMeta.video", "video", "videoCount"},
		Bio:        []string{"authorMeta.signature", "signature", "userInfo.signature"},
		ProfileURL: []string{"authorMeta.profileUrl", "profileUrl"},
	}
}

// LoadAliases reads alias overrides from a YAML file. An empty path means
// defaults; fields omitted from the file keep their default chains.
func LoadAliases(path string) (*AliasTable, error) {
	table := DefaultAliases()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read alias file")
	}
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse alias file")
	}
	return table, nil
}

// lookupField returns the value of the first alias present in the item.
func lookupField(item apify.Item, aliases []string) (any, bool) {
	for _, alias := range aliases {
		if v, ok := lookupPath(item, alias); ok {
			return v, true
		}
	}
	return nil, false
}

// lookupPath descends dot-separated keys through nested objects. Explicit
// JSON nulls count as absent.
func lookupPath(item apify.Item, path string) (any, bool) {
	var cur any = map[string]any(item)
	for _, key := range strings.Split(path, ".") {
		node, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case apify.Item:
		return m, true
	}
	return nil, false
}
