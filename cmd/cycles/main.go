// Command cycles prints the timesheet cycles generated for a start date and
// frequency, marking the cycle that contains -asof (default today) and the
// reminders that would fire on that day.
//
//	cycles -start 2024-01-01 -frequency weekly -asof 2024-01-10
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, generic.SystemClock{}); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, clock generic.Clock) error {
	fs := flag.NewFlagSet("cycles", flag.ContinueOnError)
	fs.SetOutput(out)
	start := fs.String("start", "", "first cycle start date (YYYY-MM-DD)")
	frequency := fs.String("frequency", "weekly", "weekly, biweekly or monthly")
	asOf := fs.String("asof", "", "generate through this date (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *start == "" {
		return fmt.Errorf("-start is required")
	}
	startDate, err := generic.ParseDate(*start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	freq, err := generic.ParseRecurrence(*frequency)
	if err != nil {
		return err
	}
	today := clock.Today()
	if *asOf != "" {
		if today, err = generic.ParseDate(*asOf); err != nil {
			return fmt.Errorf("invalid -asof: %w", err)
		}
	}

	skeletons := timesheet.Generate(startDate, freq, today)
	cycles := timesheet.Merge(skeletons, nil)
	if len(cycles) == 0 {
		color.New(color.FgHiBlack).Fprintf(out, "No cycles: %s starts after %s\n", startDate, today)
		return nil
	}

	current, _ := timesheet.FindCurrent(cycles, today)
	header := color.New(color.Bold)
	header.Fprintf(out, "%s cycles from %s as of %s\n", freq, startDate, today)

	for _, c := range cycles {
		line := fmt.Sprintf("%-12s %s .. %s  %2d days", c.ID, c.StartDate, c.EndDate, c.Period().Len())
		if c.ID == current.ID {
			color.New(color.FgGreen, color.Bold).Fprintf(out, "* %s  (current)\n", line)
			continue
		}
		fmt.Fprintf(out, "  %s\n", line)
	}

	reminders := timesheet.DueReminders(cycles, today)
	if len(reminders) > 0 {
		fmt.Fprintln(out)
		warn := color.New(color.FgYellow)
		for _, r := range reminders {
			warn.Fprintf(out, "[%s] %s\n", r.Kind, r.Message)
		}
	}
	return nil
}
