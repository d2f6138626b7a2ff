package event_bus

const WeekChangedEvent EventType = "timesheet.week.changed"

// WeekChanged is published after a week record was created or mutated locally.
type WeekChanged struct {
	WeekId string
	// Reset is true when the week was deleted and recreated empty.
	Reset bool
}
