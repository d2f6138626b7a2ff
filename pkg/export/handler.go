package export

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/baptistelechat/overti-me/internal/rest"
	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service timesheet.Service
}

func NewHandler(service timesheet.Service) *Handler {
	return &Handler{service: service}
}

// ExportCurrentWeek godoc
// @Summary Export the current week
// @Description Renders the displayed week as xlsx (default), csv or json
// @Tags Export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv,json
// @Param format query string false "xlsx, csv or json"
// @Param columns query string false "Comma separated columns, all by default"
// @Success 200 {file} file
// @Failure 400 {object} rest.ErrorResponse "Invalid format or column"
// @Router /api/week/current/export [get]
func (h *Handler) ExportCurrentWeek(w http.ResponseWriter, r *http.Request) {
	record, err := timesheet.EnsureCurrentWeek(r.Context(), h.service)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.export(w, r, record)
}

// ExportWeek godoc
// @Summary Export a stored week
// @Tags Export
// @Param weekId path string true "Week id, e.g. 2025-W25"
// @Param format query string false "xlsx, csv or json"
// @Param columns query string false "Comma separated columns, all by default"
// @Success 200 {file} file
// @Failure 400 {object} rest.ErrorResponse "Invalid week id, format or column"
// @Failure 404 {object} rest.ErrorResponse "Week not found"
// @Router /api/week/{weekId}/export [get]
func (h *Handler) ExportWeek(w http.ResponseWriter, r *http.Request) {
	id, err := week.Parse(mux.Vars(r)["weekId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid week id", "Week id must match YYYY-Www")
		return
	}
	record, ok := h.service.GetById(id)
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "Week not found", "")
		return
	}
	h.export(w, r, record)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, record timesheet.WeekRecord) {
	query := r.URL.Query()
	formatParam := query.Get("format")
	if formatParam == "" && r.Header.Get("Accept") == "text/csv" {
		formatParam = string(FormatCSV)
	}
	format, err := ParseFormat(formatParam)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid export format", "Format must be xlsx, csv or json")
		return
	}
	columns, err := ParseColumns(query.Get("columns"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid export column", err.Error())
		return
	}

	var buf bytes.Buffer
	contentType, err := Write(&buf, record, columns, format)
	if err != nil {
		log.Errorf("failed to export week %s: %v", record.Id, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", FileName(record.Id, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Errorf("failed to write export: %v", err)
	}
}

