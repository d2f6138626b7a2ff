package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/week"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

type Renderer interface {
	ContentType() string
	Render(w io.Writer, rows []Row) error
}

func RendererFor(format Format) (Renderer, error) {
	switch format {
	case FormatJSON:
		return JsonRenderer{}, nil
	case FormatCSV:
		return NewCsvRenderer(), nil
	case FormatXLSX:
		return NewXlsxRenderer(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func FileName(id week.Id, format Format) string {
	return fmt.Sprintf("overti-me_%s.%s", id, format)
}

type JsonRenderer struct{}

func (JsonRenderer) ContentType() string {
	return "application/json"
}

func (JsonRenderer) Render(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

// Write renders record in format and returns the content type of the output.
func Write(w io.Writer, record timesheet.WeekRecord, columns []Column, format Format) (string, error) {
	renderer, err := RendererFor(format)
	if err != nil {
		return "", err
	}
	rows, err := Rows(record, columns)
	if err != nil {
		return "", err
	}
	if err := renderer.Render(w, rows); err != nil {
		return "", fmt.Errorf("failed to render %s export of week %s: %w", format, record.Id, err)
	}
	return renderer.ContentType(), nil
}
