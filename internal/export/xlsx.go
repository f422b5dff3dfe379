package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// writeXLSX writes profiles to a single-sheet workbook, same column order
// as the CSV format.
func writeXLSX(path string, profiles []model.Profile) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("profiles")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range profileColumns {
		header.AddCell().SetString(col)
	}
	for _, p := range profiles {
		row := sheet.AddRow()
		for _, cell := range profileRow(p) {
			row.AddCell().SetString(cell)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}
