package timesheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/baptistelechat/overti-me/internal/rest"
	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type WorkDayDTO struct {
	Date               string   `json:"date"`
	StartTime          string   `json:"startTime"`
	EndTime            string   `json:"endTime"`
	LunchBreakStart    string   `json:"lunchBreakStart"`
	LunchBreakEnd      string   `json:"lunchBreakEnd"`
	DirectDuration     *float64 `json:"directDuration,omitempty"`
	CalculatedDuration float64  `json:"calculatedDuration"`
	IsWorked           bool     `json:"isWorked"`
	EntryMode          string   `json:"entryMode"`
	OverDailyLimit     bool     `json:"overDailyLimit"`
}

type WeekDTO struct {
	Id              string       `json:"id"`
	Days            []WorkDayDTO `json:"days"`
	TotalHours      float64      `json:"totalHours"`
	NormalHours     float64      `json:"normalHours"`
	OvertimeHours25 float64      `json:"overtimeHours25"`
	OvertimeHours50 float64      `json:"overtimeHours50"`
	OverLegalLimit  bool         `json:"overLegalLimit"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	// Degraded is true while local storage is failing.
	Degraded bool `json:"degraded"`
}

type DayUpdateDTO struct {
	StartTime       *string  `json:"startTime"`
	EndTime         *string  `json:"endTime"`
	LunchBreakStart *string  `json:"lunchBreakStart"`
	LunchBreakEnd   *string  `json:"lunchBreakEnd"`
	DirectDuration  *float64 `json:"directDuration"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetCurrentWeek godoc
// @Summary Get the current week
// @Description Returns the displayed week, creating the week of today when none is selected
// @Tags Week
// @Produce json
// @Success 200 {object} WeekDTO
// @Router /api/week/current [get]
func (h *Handler) GetCurrentWeek(w http.ResponseWriter, r *http.Request) {
	record, err := EnsureCurrentWeek(r.Context(), h.service)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

// SetCurrentWeek godoc
// @Summary Navigate to a week
// @Tags Week
// @Produce json
// @Param week query string true "Week id, e.g. 2025-W25"
// @Success 200 {object} WeekDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid week id"
// @Router /api/week/current [put]
func (h *Handler) SetCurrentWeek(w http.ResponseWriter, r *http.Request) {
	id, err := week.Parse(r.URL.Query().Get("week"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid week id", "Week id must match YYYY-Www")
		return
	}
	record, err := h.service.SetCurrentWeekId(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

// PreviousWeek godoc
// @Summary Navigate to the previous week
// @Tags Week
// @Produce json
// @Success 200 {object} WeekDTO
// @Router /api/week/current/previous [post]
func (h *Handler) PreviousWeek(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.PreviousWeek)
}

// NextWeek godoc
// @Summary Navigate to the next week
// @Tags Week
// @Produce json
// @Success 200 {object} WeekDTO
// @Router /api/week/current/next [post]
func (h *Handler) NextWeek(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.NextWeek)
}

// Today godoc
// @Summary Navigate to the week of today
// @Tags Week
// @Produce json
// @Success 200 {object} WeekDTO
// @Router /api/week/current/today [post]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.service.InitializeCurrentWeek)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(ctx context.Context) (WeekRecord, error)) {
	record, err := move(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

// GetWeek godoc
// @Summary Get a stored week
// @Tags Week
// @Produce json
// @Param weekId path string true "Week id, e.g. 2025-W25"
// @Success 200 {object} WeekDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid week id"
// @Failure 404 {object} rest.ErrorResponse "Week not found"
// @Router /api/week/{weekId} [get]
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	id, err := week.Parse(mux.Vars(r)["weekId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid week id", "Week id must match YYYY-Www")
		return
	}
	record, ok := h.service.GetById(id)
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "Week not found", id.String())
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

// ListWeeks godoc
// @Summary List stored weeks
// @Tags Week
// @Produce json
// @Success 200 {array} WeekDTO
// @Router /api/week [get]
func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	records := h.service.GetAll()
	dtos := make([]WeekDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, h.toDTO(record))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// UpdateDay godoc
// @Summary Edit a day of the current week
// @Description Absent fields keep their value, an empty string clears a time
// @Tags Week
// @Accept json
// @Produce json
// @Param dayIndex path int true "Day index, 0 is Monday"
// @Param day body DayUpdateDTO true "Fields to change"
// @Success 200 {object} WeekDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/week/current/day/{dayIndex} [patch]
func (h *Handler) UpdateDay(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}
	var dto DayUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	if _, err := EnsureCurrentWeek(r.Context(), h.service); err != nil {
		h.writeServiceError(w, err)
		return
	}
	record, err := h.service.UpdateDay(r.Context(), dayIndex, DayUpdate(dto))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

// ResetDay godoc
// @Summary Clear a day of the current week
// @Tags Week
// @Produce json
// @Param dayIndex path int true "Day index, 0 is Monday"
// @Success 200 {object} WeekDTO
// @Router /api/week/current/day/{dayIndex} [delete]
func (h *Handler) ResetDay(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}
	record, err := h.service.ResetDay(r.Context(), dayIndex)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

// ResetWeek godoc
// @Summary Clear the current week
// @Tags Week
// @Produce json
// @Success 200 {object} WeekDTO
// @Router /api/week/current [delete]
func (h *Handler) ResetWeek(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.ResetWeek(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(record))
}

func parseDayIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	dayIndex, err := strconv.Atoi(mux.Vars(r)["dayIndex"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid dayIndex format", "Parameter dayIndex must be a number")
		return 0, false
	}
	return dayIndex, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDayIndexOutOfRange):
		rest.WriteError(w, http.StatusBadRequest, "Day index out of range", "Day index must be between 0 and 6")
	case errors.Is(err, ErrInvalidTime), errors.Is(err, ErrInvalidDuration), errors.Is(err, week.ErrInvalidWeekId):
		rest.WriteError(w, http.StatusBadRequest, "Invalid day data", err.Error())
	case errors.Is(err, ErrNoCurrentWeek):
		rest.WriteError(w, http.StatusConflict, "No current week", "Navigate to a week first")
	default:
		log.Errorf("week request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

func (h *Handler) toDTO(record WeekRecord) WeekDTO {
	thresholds := h.service.Thresholds()
	days := make([]WorkDayDTO, 0, DaysPerWeek)
	for _, day := range record.Days {
		days = append(days, WorkDayDTO{
			Date:               day.Date,
			StartTime:          day.StartTime,
			EndTime:            day.EndTime,
			LunchBreakStart:    day.LunchBreakStart,
			LunchBreakEnd:      day.LunchBreakEnd,
			DirectDuration:     day.DirectDuration,
			CalculatedDuration: day.CalculatedDuration,
			IsWorked:           day.IsWorked,
			EntryMode:          EntryModeOf(day).String(),
			OverDailyLimit:     thresholds.IsOverDailyLimit(day.CalculatedDuration),
		})
	}
	return WeekDTO{
		Id:              record.Id.String(),
		Days:            days,
		TotalHours:      record.TotalHours,
		NormalHours:     record.NormalHours,
		OvertimeHours25: record.OvertimeHours25,
		OvertimeHours50: record.OvertimeHours50,
		OverLegalLimit:  thresholds.IsOverLegalLimit(record.TotalHours),
		UpdatedAt:       record.UpdatedAt,
		Degraded:        h.service.Degraded(),
	}
}
