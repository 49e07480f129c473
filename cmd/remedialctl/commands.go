package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"remedial_go/database"
	"remedial_go/database/seeders"
	"remedial_go/services/attendance"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type cli struct {
	out io.Writer
	now func() time.Time
	// open returns the database and the configured school year override
	open func() (*gorm.DB, string, error)
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remedialctl",
		Short:         "Remedial attendance maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(c.migrateCmd(), c.seedCmd(), c.schoolYearCmd(), c.windowCmd(), c.checkDateCmd())
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := c.open()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(c.out, "migration completed")
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	var schoolYear string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed users, subjects, students and a remedial calendar into empty tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, override, err := c.open()
			if err != nil {
				return err
			}
			if schoolYear == "" {
				schoolYear = c.schoolYear(override, c.now())
			}
			if err := seeders.Seed(db, schoolYear); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(c.out, "seeded school year %s\n", schoolYear)
			return nil
		},
	}
	cmd.Flags().StringVar(&schoolYear, "school-year", "", "School year for the remedial quarters (default: current)")
	return cmd
}

func (c *cli) schoolYearCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "school-year",
		Short: "Print the school year containing a date (default: today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				fmt.Fprintln(c.out, attendance.SchoolYearFor(c.now()))
				return nil
			}
			t, err := attendance.ParseDate(date)
			if err != nil {
				return fmt.Errorf("%w: %s", attendance.ErrInvalidDate, date)
			}
			fmt.Fprintln(c.out, attendance.SchoolYearFor(t))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD")
	return cmd
}

func (c *cli) windowCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the resolved remedial window for a subject as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := c.resolve(cmd, subject)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(w)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Math, English or Filipino")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (c *cli) checkDateCmd() *cobra.Command {
	var subject, date string
	cmd := &cobra.Command{
		Use:   "check-date",
		Short: "Report whether attendance can be recorded for a subject on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := c.resolve(cmd, subject)
			if err != nil {
				return err
			}
			if _, err := attendance.ParseDate(date); err != nil {
				return fmt.Errorf("%w: %s", attendance.ErrInvalidDate, date)
			}
			switch {
			case !w.Configured:
				fmt.Fprintf(c.out, "%s %s: not allowed (%s)\n", w.Subject, date, w.Reason)
			case w.Admits(date):
				fmt.Fprintf(c.out, "%s %s: allowed\n", w.Subject, date)
			default:
				fmt.Fprintf(c.out, "%s %s: not allowed (months %v, weekdays %v)\n", w.Subject, date, w.AllowedMonths, w.AllowedWeekdays)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Math, English or Filipino")
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) resolve(cmd *cobra.Command, subject string) (attendance.Window, error) {
	canonical, ok := attendance.NormalizeSubject(subject)
	if !ok {
		return attendance.Window{}, fmt.Errorf("%w: %q", attendance.ErrInvalidSubject, subject)
	}
	db, override, err := c.open()
	if err != nil {
		return attendance.Window{}, err
	}
	resolver := attendance.NewResolver(attendance.NewGormStore(db), nil, c.now)
	resolver.SchoolYearOverride = override
	return resolver.Resolve(cmd.Context(), canonical)
}

func (c *cli) schoolYear(override string, now time.Time) string {
	if override != "" {
		return override
	}
	return attendance.SchoolYearFor(now)
}
