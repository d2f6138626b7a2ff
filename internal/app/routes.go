package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Weeks
	r.HandleFunc("/api/week", deps.TimesheetHandler.ListWeeks).Methods("GET")
	r.HandleFunc("/api/week/current", deps.TimesheetHandler.GetCurrentWeek).Methods("GET")
	r.HandleFunc("/api/week/current", deps.TimesheetHandler.SetCurrentWeek).Methods("PUT")
	r.HandleFunc("/api/week/current", deps.TimesheetHandler.ResetWeek).Methods("DELETE")
	r.HandleFunc("/api/week/current/previous", deps.TimesheetHandler.PreviousWeek).Methods("POST")
	r.HandleFunc("/api/week/current/next", deps.TimesheetHandler.NextWeek).Methods("POST")
	r.HandleFunc("/api/week/current/today", deps.TimesheetHandler.Today).Methods("POST")
	r.HandleFunc("/api/week/current/day/{dayIndex}", deps.TimesheetHandler.UpdateDay).Methods("PATCH")
	r.HandleFunc("/api/week/current/day/{dayIndex}", deps.TimesheetHandler.ResetDay).Methods("DELETE")

	// Export
	r.HandleFunc("/api/week/current/export", deps.ExportHandler.ExportCurrentWeek).Methods("GET")
	r.HandleFunc("/api/week/{weekId}/export", deps.ExportHandler.ExportWeek).Methods("GET")

	r.HandleFunc("/api/week/{weekId}", deps.TimesheetHandler.GetWeek).Methods("GET")

	if deps.SyncEngine == nil {
		return
	}

	// User management
	r.HandleFunc("/api/user", deps.UserHandler.Signup).Methods("POST")
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")

	// Session and sync
	r.HandleFunc("/api/session", deps.SyncHandler.Login).Methods("POST")
	r.HandleFunc("/api/session", deps.SyncHandler.Logout).Methods("DELETE")
	r.HandleFunc("/api/sync", deps.SyncHandler.Sync).Methods("POST")
	r.HandleFunc("/api/sync/status", deps.SyncHandler.GetStatus).Methods("GET")
}
