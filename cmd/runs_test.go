package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Topics:    []string{"food", "travel"},
			Status:    model.RunStatusComplete,
			Summary:   &model.RunSummary{TopicsTotal: 2, ProfilesKept: 17},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Topics:    []string{"fitness"},
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "TOPICS")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "food,travel")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "17")
	assert.Contains(t, output, "fitness")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2026-03-10 09:15")
	assert.Contains(t, output, "2m0s")
}

func TestFormatRunsList_TruncatesLongTopicLists(t *testing.T) {
	runs := []model.Run{
		{
			ID:     "abc12345-6789-0000-0000-000000000000",
			Topics: []string{"one", "two", "three", "four", "five", "six", "seven"},
			Status: model.RunStatusComplete,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), "seven")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
