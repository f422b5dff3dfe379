package pipeline

import "github.com/quantumiracle/tiktok-apify/internal/model"

// FilterProfiles applies the email predicate. When requireEmail is false
// the input is returned as-is; otherwise only profiles with an extracted
// email survive, in their original relative order.
func FilterProfiles(profiles []model.Profile, requireEmail bool) []model.Profile {
	if !requireEmail {
		return profiles
	}

	kept := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.HasEmail {
			kept = append(kept, p)
		}
	}
	return kept
}
