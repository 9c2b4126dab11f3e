package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"edtcal/internal/capture"
	appLog "edtcal/internal/log"
	"edtcal/internal/web"
	"edtcal/internal/widget"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget page and API, refreshing on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				app.Config.Listen = listen
			}
			preview, _ := cmd.Flags().GetString("preview")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched, err := startScheduler(ctx, app, preview)
			if err != nil {
				return err
			}
			defer func() {
				<-sched.Stop().Done()
			}()

			srv := web.NewServer(app.Config, app.Service, preview)
			if err := srv.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			appLog.Info("edtcal exiting")
			return nil
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().String("preview", "", "Write a PNG of the widget page here after each scheduled refresh")
	return cmd
}

// startScheduler runs one refresh immediately, then on cfg.RefreshCron.
func startScheduler(ctx context.Context, app *App, preview string) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(app.Config.Location()))
	job := func() {
		res := app.Service.Refresh(ctx)
		appLog.Info("scheduled refresh", "result", res.Kind.String(), "entries", len(res.Entries))
		if preview == "" || res.Kind == widget.Empty {
			return
		}
		if err := capturePreview(ctx, app, preview); err != nil {
			appLog.Error("preview capture failed", err, "path", preview)
		}
	}
	if _, err := c.AddFunc(app.Config.RefreshCron, job); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", app.Config.RefreshCron, err)
	}
	c.Start()
	go job()
	appLog.Info("refresh scheduler started", "schedule", app.Config.RefreshCron)
	return c, nil
}

func capturePreview(ctx context.Context, app *App, path string) error {
	url, stop, err := servePrivate(app)
	if err != nil {
		return err
	}
	defer stop()
	return capture.WidgetPNG(ctx, capture.Options{URL: url, OutputPath: path})
}
