package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

func annotated(username, bio string) model.Profile {
	p := model.Profile{Username: username, Bio: bio}
	p.SetEmail(ExtractEmail(bio))
	return p
}

func TestFilterProfiles_IdentityWhenEmailNotRequired(t *testing.T) {
	in := []model.Profile{
		annotated("a", "mail a@example.com"),
		annotated("b", "no contact"),
	}

	out := FilterProfiles(in, false)

	assert.Equal(t, in, out)
	// Identity, not a filtered copy.
	assert.Len(t, out, 2)
}

func TestFilterProfiles_KeepsOnlyProfilesWithEmail(t *testing.T) {
	in := []model.Profile{
		annotated("a", "mail a@example.com"),
		annotated("b", "no contact"),
		annotated("c", "c@example.com here"),
		annotated("d", ""),
	}

	out := FilterProfiles(in, true)

	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Username)
	assert.Equal(t, "c", out[1].Username)
}

func TestFilterProfiles_Idempotent(t *testing.T) {
	in := []model.Profile{
		annotated("a", "mail a@example.com"),
		annotated("b", "no contact"),
	}

	once := FilterProfiles(in, true)
	twice := FilterProfiles(once, true)

	assert.Equal(t, once, twice)
}

func TestFilterProfiles_EmptyInput(t *testing.T) {
	out := FilterProfiles(nil, true)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	out = FilterProfiles([]model.Profile{}, true)
	assert.Empty(t, out)
}
