package pipeline

import (
	"regexp"
	"strings"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// emailPattern matches the canonical email grammar: dotted local part,
// domain labels, alphabetic TLD of two or more characters.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// imageExtensions flag matches that are really asset filenames pasted into
// bios (avatar@2x.png style), not addresses.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// ExtractEmail returns the leftmost email address in text, or "" when none
// is present.
func ExtractEmail(text string) string {
	match := emailPattern.FindString(text)
	if match == "" {
		return ""
	}

	lower := strings.ToLower(match)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return ""
		}
	}
	return match
}

// AnnotateEmails runs the extractor over each profile's bio, setting the
// email fields in place. This is the single mutation in a profile's
// lifecycle between normalization and filtering.
func AnnotateEmails(profiles []model.Profile) {
	for i := range profiles {
		profiles[i].SetEmail(ExtractEmail(profiles[i].Bio))
	}
}
