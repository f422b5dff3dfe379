package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// writeJSON writes profiles as an indented JSON array. Counts the provider
// never sent serialize as null, not zero.
func writeJSON(path string, profiles []model.Profile) error {
	data, err := json.MarshalIndent(profiles, "", "    ")
	if err != nil {
		return eris.Wrap(err, "export: marshal profiles")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write file")
	}
	return nil
}
