package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"

	"edtcal/internal/model"
	"edtcal/internal/term"
	"edtcal/internal/timetable"
	"edtcal/internal/widget"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the day at the stored cursor, or a given date",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			dateStr, _ := cmd.Flags().GetString("date")
			if dateStr == "" {
				return showCurrent(cmd, app)
			}
			date, err := parseDate(dateStr, app.Service.Now())
			if err != nil {
				return err
			}
			view, res := app.Service.RenderDate(cmd.Context(), date)
			return printView(cmd, view, res)
		},
	}
	cmd.Flags().String("date", "", "Date to show: YYYY-MM-DD or natural language (\"next monday\")")
	return cmd
}

func newMoveCmd(use, short string, delta int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Service.Navigate(cmd.Context(), delta); err != nil {
				return err
			}
			return showCurrent(cmd, app)
		},
	}
	return cmd
}

func newTodayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Reset the cursor to today and show it",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.ResetCursor(cmd.Context()); err != nil {
				return err
			}
			return showCurrent(cmd, app)
		},
	}
	return cmd
}

func showCurrent(cmd *cobra.Command, app *App) error {
	view, res := app.Service.Render(cmd.Context())
	return printView(cmd, view, res)
}

func printView(cmd *cobra.Command, view timetable.View, res widget.Result) error {
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), term.Render(view, width, footer(res)))
	return err
}

func footer(res widget.Result) string {
	parts := []string{res.Kind.String()}
	if !res.FetchedAt.IsZero() {
		parts = append(parts, res.FetchedAt.Format("02/01 15:04"))
	}
	if res.Err != nil {
		parts = append(parts, res.Err.Error())
	}
	return strings.Join(parts, " · ")
}

// parseDate accepts an ISO date or a natural-language expression relative
// to now.
func parseDate(s string, now time.Time) (model.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := model.ParseDate(s); err == nil {
		return d, nil
	}
	parsed, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return model.DateOf(parsed.In(now.Location())), nil
}
