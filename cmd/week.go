package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/baptistelechat/overti-me/internal/app"
	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"
)

var (
	weekFlag string
	dateFlag string
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show the current week, optionally navigating first",
	Long: `Show the current week. --week selects a week id such as 2025-W25,
--date selects the week containing a date ("2025-06-18", "last friday", "2 weeks ago").`,
	Args: cobra.NoArgs,
	RunE: runWeek,
}

var weekNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Move to the next week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, func(ctx context.Context, s timesheet.Service) (timesheet.WeekRecord, error) {
			return s.NextWeek(ctx)
		})
	},
}

var weekPreviousCmd = &cobra.Command{
	Use:   "previous",
	Short: "Move to the previous week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, func(ctx context.Context, s timesheet.Service) (timesheet.WeekRecord, error) {
			return s.PreviousWeek(ctx)
		})
	},
}

var weekTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Move to the week of today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, func(ctx context.Context, s timesheet.Service) (timesheet.WeekRecord, error) {
			return s.InitializeCurrentWeek(ctx)
		})
	},
}

func init() {
	weekCmd.Flags().StringVar(&weekFlag, "week", "", "Week id, e.g. 2025-W25")
	weekCmd.Flags().StringVar(&dateFlag, "date", "", "Any date of the week, absolute or relative")
	weekCmd.MarkFlagsMutuallyExclusive("week", "date")

	weekCmd.AddCommand(weekNextCmd)
	weekCmd.AddCommand(weekPreviousCmd)
	weekCmd.AddCommand(weekTodayCmd)
}

func runWeek(cmd *cobra.Command, args []string) error {
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		id, err := selectedWeek(deps.Clock.Now())
		if err != nil {
			return err
		}

		var record timesheet.WeekRecord
		if id.IsZero() {
			record, err = timesheet.EnsureCurrentWeek(ctx, deps.Store)
		} else {
			record, err = deps.Store.SetCurrentWeekId(ctx, id)
		}
		if err != nil {
			return err
		}
		printWeek(cmd.OutOrStdout(), record, deps.Store.Thresholds())
		return nil
	})
}

func navigate(cmd *cobra.Command, move func(ctx context.Context, s timesheet.Service) (timesheet.WeekRecord, error)) error {
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		record, err := move(ctx, deps.Store)
		if err != nil {
			return err
		}
		printWeek(cmd.OutOrStdout(), record, deps.Store.Thresholds())
		return nil
	})
}

// selectedWeek resolves --week and --date. The zero id means no selection.
func selectedWeek(now time.Time) (week.Id, error) {
	if weekFlag != "" {
		return week.Parse(weekFlag)
	}
	if dateFlag == "" {
		return week.Id{}, nil
	}
	date, err := ParseDate(dateFlag, now)
	if err != nil {
		return week.Id{}, err
	}
	return week.IdOf(date), nil
}

// ParseDate accepts YYYY-MM-DD or a natural language date relative to now. Relative
// dates look into the past.
func ParseDate(s string, now time.Time) (time.Time, error) {
	if date, err := time.ParseInLocation(week.DateLayout, s, now.Location()); err == nil {
		return date, nil
	}
	date, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, err)
	}
	return date, nil
}

func printWeek(out io.Writer, record timesheet.WeekRecord, thresholds timesheet.Thresholds) {
	fmt.Fprintf(out, "Week %s\n\n", record.Id)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDay\tDate\tStart\tLunch\tEnd\tHours\t")
	for i, day := range record.Days {
		date, _ := time.Parse(week.DateLayout, day.Date)
		lunch := ""
		if day.LunchBreakStart != "" || day.LunchBreakEnd != "" {
			lunch = day.LunchBreakStart + "-" + day.LunchBreakEnd
		}
		hours := ""
		if day.IsWorked {
			hours = fmt.Sprintf("%.2f", day.CalculatedDuration)
			if thresholds.IsOverDailyLimit(day.CalculatedDuration) {
				hours += " !"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i, date.Weekday().String()[:3], day.Date, day.StartTime, lunch, day.EndTime, hours)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal      %6.2f h", record.TotalHours)
	if thresholds.IsOverLegalLimit(record.TotalHours) {
		fmt.Fprintf(out, "  (over the %.0f h legal limit)", thresholds.LegalLimit)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Normal     %6.2f h\n", record.NormalHours)
	fmt.Fprintf(out, "+25%%       %6.2f h\n", record.OvertimeHours25)
	fmt.Fprintf(out, "+50%%       %6.2f h\n", record.OvertimeHours50)
}
