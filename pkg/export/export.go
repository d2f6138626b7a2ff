package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/week"
)

var ErrUnknownColumn = errors.New("unknown export column")

// Column identifies an export column. Totaux and Majorations select summary rows
// instead of columns.
type Column string

const (
	Jour        Column = "Jour"
	Date        Column = "Date"
	Debut       Column = "Debut"
	PauseDebut  Column = "PauseDebut"
	PauseFin    Column = "PauseFin"
	Fin         Column = "Fin"
	Duree       Column = "Duree"
	Totaux      Column = "Totaux"
	Majorations Column = "Majorations"
)

var AllColumns = []Column{Jour, Date, Debut, PauseDebut, PauseFin, Fin, Duree, Totaux, Majorations}

const (
	labelTotal      = "Totaux"
	labelNormal     = "Heures normales"
	labelOvertime25 = "Heures +25%"
	labelOvertime50 = "Heures +50%"
	dateLayout      = "02/01/2006"
)

var dayNames = map[time.Weekday]string{
	time.Monday:    "Lundi",
	time.Tuesday:   "Mardi",
	time.Wednesday: "Mercredi",
	time.Thursday:  "Jeudi",
	time.Friday:    "Vendredi",
	time.Saturday:  "Samedi",
	time.Sunday:    "Dimanche",
}

// ParseColumns reads a comma separated selection. An empty selection means every column.
func ParseColumns(s string) ([]Column, error) {
	if strings.TrimSpace(s) == "" {
		return slices.Clone(AllColumns), nil
	}
	var columns []Column
	for _, part := range strings.Split(s, ",") {
		column := Column(strings.TrimSpace(part))
		if !slices.Contains(AllColumns, column) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		if !slices.Contains(columns, column) {
			columns = append(columns, column)
		}
	}
	return columns, nil
}

type Cell struct {
	Column Column
	Value  any
}

// Row is an ordered set of cells. Values are strings or float64 hours.
type Row []Cell

func (r Row) Get(column Column) (any, bool) {
	for _, cell := range r {
		if cell.Column == column {
			return cell.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the row as an object whose keys keep the cell order.
func (r Row) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, cell := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(string(cell.Column))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(cell.Value)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Rows flattens a week into one row per day followed by the selected summary rows.
// Summary rows are labelled in the Jour column, or in Date when Jour is not selected, and
// carry hours only when Duree is selected.
func Rows(record timesheet.WeekRecord, columns []Column) ([]Row, error) {
	selected := func(c Column) bool { return slices.Contains(columns, c) }

	rows := make([]Row, 0, timesheet.DaysPerWeek+4)
	for _, day := range record.Days {
		date, err := time.Parse(week.DateLayout, day.Date)
		if err != nil {
			return nil, fmt.Errorf("day of week %s has an invalid date %q: %w", record.Id, day.Date, err)
		}
		row := make(Row, 0, len(columns))
		if selected(Jour) {
			row = append(row, Cell{Jour, dayNames[date.Weekday()]})
		}
		if selected(Date) {
			row = append(row, Cell{Date, date.Format(dateLayout)})
		}
		if selected(Debut) {
			row = append(row, Cell{Debut, day.StartTime})
		}
		if selected(PauseDebut) {
			row = append(row, Cell{PauseDebut, day.LunchBreakStart})
		}
		if selected(PauseFin) {
			row = append(row, Cell{PauseFin, day.LunchBreakEnd})
		}
		if selected(Fin) {
			row = append(row, Cell{Fin, day.EndTime})
		}
		if selected(Duree) {
			row = append(row, Cell{Duree, day.CalculatedDuration})
		}
		rows = append(rows, row)
	}

	summary := func(label string, hours float64) Row {
		row := Row{}
		if selected(Jour) {
			row = append(row, Cell{Jour, label})
		} else if selected(Date) {
			row = append(row, Cell{Date, label})
		}
		if selected(Duree) {
			row = append(row, Cell{Duree, hours})
		}
		return row
	}
	if selected(Totaux) {
		rows = append(rows, summary(labelTotal, record.TotalHours), summary(labelNormal, record.NormalHours))
	}
	if selected(Majorations) {
		rows = append(rows, summary(labelOvertime25, record.OvertimeHours25), summary(labelOvertime50, record.OvertimeHours50))
	}
	return rows, nil
}

// Header lists the columns of rows in order of first appearance.
func Header(rows []Row) []Column {
	var header []Column
	for _, row := range rows {
		for _, cell := range row {
			if !slices.Contains(header, cell.Column) {
				header = append(header, cell.Column)
			}
		}
	}
	return header
}
