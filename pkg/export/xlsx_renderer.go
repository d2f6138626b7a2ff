package export

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Semaine"

type XlsxRendererImpl struct {
}

func NewXlsxRenderer() *XlsxRendererImpl {
	return &XlsxRendererImpl{}
}

func (r *XlsxRendererImpl) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render writes a single "Semaine" sheet: header on the first line, hours as numbers.
func (r *XlsxRendererImpl) Render(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("failed to close workbook: %v", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	header := Header(rows)
	for i, column := range header {
		if err := setCell(f, i+1, 1, string(column)); err != nil {
			return err
		}
	}
	for j, row := range rows {
		for i, column := range header {
			value, ok := row.Get(column)
			if !ok {
				continue
			}
			if err := setCell(f, i+1, j+2, value); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheetName, cell, value)
}
