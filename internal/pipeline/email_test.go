package pipeline

import (
	"testing"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

func TestExtractEmail(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"plain address", "booking: chef@example.com", "chef@example.com"},
		{"dots plus tag and multi-label tld", "reach me at a.b+tag@example.co.uk thanks", "a.b+tag@example.co.uk"},
		{"no email", "no email here", ""},
		{"empty text", "", ""},
		{"first of two wins", "two a@b.com and c@d.com", "a@b.com"},
		{"uppercase preserved", "mail OFFICE@STUDIO.COM", "OFFICE@STUDIO.COM"},
		{"image filename is not an address", "pfp: avatar@2x.png", ""},
		{"jpeg filename is not an address", "see banner@large.JPEG", ""},
		{"address after filename", "avatar@2x.png mail: real@example.com", ""},
		{"single letter tld rejected", "weird a@b.c", ""},
		{"surrounded by text", "DM or business.inquiries@agency.io only", "business.inquiries@agency.io"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractEmail(tc.text); got != tc.want {
				t.Errorf("ExtractEmail(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestAnnotateEmails(t *testing.T) {
	profiles := []model.Profile{
		{Username: "with_email", Bio: "collab: chef@example.com"},
		{Username: "without_email", Bio: "just vibes"},
		{Username: "image_bio", Bio: "logo@2x.png"},
	}

	AnnotateEmails(profiles)

	if !profiles[0].HasEmail || profiles[0].Email == nil || *profiles[0].Email != "chef@example.com" {
		t.Errorf("profiles[0] = %+v, want email chef@example.com", profiles[0])
	}
	if profiles[1].HasEmail || profiles[1].Email != nil {
		t.Errorf("profiles[1] = %+v, want no email", profiles[1])
	}
	if profiles[2].HasEmail || profiles[2].Email != nil {
		t.Errorf("profiles[2] = %+v, want no email", profiles[2])
	}
}

func TestAnnotateEmails_Idempotent(t *testing.T) {
	profiles := []model.Profile{{Username: "a", Bio: "x@example.com"}}

	AnnotateEmails(profiles)
	first := profiles[0]
	AnnotateEmails(profiles)

	if profiles[0].HasEmail != first.HasEmail || *profiles[0].Email != *first.Email {
		t.Errorf("second annotate changed the profile: %+v vs %+v", profiles[0], first)
	}
}
