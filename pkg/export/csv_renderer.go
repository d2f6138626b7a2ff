package export

import (
	"encoding/csv"
	"io"
	"strconv"

	log "github.com/sirupsen/logrus"
)

type CsvRendererImpl struct {
}

func NewCsvRenderer() *CsvRendererImpl {
	return &CsvRendererImpl{}
}

func (r *CsvRendererImpl) ContentType() string {
	return "text/csv; charset=utf-8"
}

// Render writes a header line followed by one line per row. Missing cells stay empty.
func (r *CsvRendererImpl) Render(w io.Writer, rows []Row) error {
	header := Header(rows)
	data := make([][]string, 0, len(rows)+1)
	names := make([]string, 0, len(header))
	for _, column := range header {
		names = append(names, string(column))
	}
	data = append(data, names)
	for _, row := range rows {
		line := make([]string, 0, len(header))
		for _, column := range header {
			value, _ := row.Get(column)
			line = append(line, cellToString(value))
		}
		data = append(data, line)
	}

	writer := csv.NewWriter(w)
	for _, line := range data {
		err := writer.Write(line)
		if err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return err
	}
	return nil
}

func cellToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		log.Warnf("unexpected export cell type %T", value)
		return ""
	}
}
