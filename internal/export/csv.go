package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// writeCSV writes profiles as a CSV file with a header row.
func writeCSV(path string, profiles []model.Profile) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(profileColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, p := range profiles {
		if err := w.Write(profileRow(p)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	return nil
}
