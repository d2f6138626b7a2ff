package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/baptistelechat/overti-me/internal/app"
	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/spf13/cobra"
)

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Edit a day of the current week",
}

var daySetCmd = &cobra.Command{
	Use:   "set <index>",
	Short: "Set times or a direct duration for a day (0 is Monday)",
	Long: `Set times or a direct duration for a day of the current week, 0 being Monday.
Only the given flags change; an empty value clears a time. Setting a time leaves
direct duration mode, setting --duration enters it.`,
	Example: `  overti-me day set 0 --start 08:00 --lunch-start 12:00 --lunch-end 13:00 --end 17:30
  overti-me day set 4 --duration 7.5`,
	Args: cobra.ExactArgs(1),
	RunE: runDaySet,
}

var dayResetCmd = &cobra.Command{
	Use:   "reset <index>",
	Short: "Clear a day of the current week",
	Args:  cobra.ExactArgs(1),
	RunE:  runDayReset,
}

func init() {
	daySetCmd.Flags().String("start", "", "Start time, HH:MM")
	daySetCmd.Flags().String("end", "", "End time, HH:MM")
	daySetCmd.Flags().String("lunch-start", "", "Lunch break start, HH:MM")
	daySetCmd.Flags().String("lunch-end", "", "Lunch break end, HH:MM")
	daySetCmd.Flags().Float64("duration", 0, "Worked hours, replaces the times")
	daySetCmd.MarkFlagsMutuallyExclusive("duration", "start")
	daySetCmd.MarkFlagsMutuallyExclusive("duration", "end")

	dayCmd.AddCommand(daySetCmd)
	dayCmd.AddCommand(dayResetCmd)
}

func runDaySet(cmd *cobra.Command, args []string) error {
	index, err := parseDayIndex(args[0])
	if err != nil {
		return err
	}
	update, err := dayUpdateFromFlags(cmd)
	if err != nil {
		return err
	}
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if _, err := timesheet.EnsureCurrentWeek(ctx, deps.Store); err != nil {
			return err
		}
		record, err := deps.Store.UpdateDay(ctx, index, update)
		if err != nil {
			return err
		}
		printWeek(cmd.OutOrStdout(), record, deps.Store.Thresholds())
		return nil
	})
}

func runDayReset(cmd *cobra.Command, args []string) error {
	index, err := parseDayIndex(args[0])
	if err != nil {
		return err
	}
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if _, err := timesheet.EnsureCurrentWeek(ctx, deps.Store); err != nil {
			return err
		}
		record, err := deps.Store.ResetDay(ctx, index)
		if err != nil {
			return err
		}
		printWeek(cmd.OutOrStdout(), record, deps.Store.Thresholds())
		return nil
	})
}

func parseDayIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 || index >= timesheet.DaysPerWeek {
		return 0, fmt.Errorf("%w: %q", timesheet.ErrDayIndexOutOfRange, s)
	}
	return index, nil
}

// dayUpdateFromFlags only carries the flags given on the command line.
func dayUpdateFromFlags(cmd *cobra.Command) (timesheet.DayUpdate, error) {
	var update timesheet.DayUpdate
	flags := cmd.Flags()
	for name, field := range map[string]**string{
		"start":       &update.StartTime,
		"end":         &update.EndTime,
		"lunch-start": &update.LunchBreakStart,
		"lunch-end":   &update.LunchBreakEnd,
	} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return update, err
		}
		*field = &value
	}
	if flags.Changed("duration") {
		duration, err := flags.GetFloat64("duration")
		if err != nil {
			return update, err
		}
		update.DirectDuration = &duration
	}
	return update, nil
}
