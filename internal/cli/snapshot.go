package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"edtcal/internal/capture"
	appLog "edtcal/internal/log"
	"edtcal/internal/web"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <output.png>",
		Short: "Render the widget page in headless Chromium and save it as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			width, _ := cmd.Flags().GetInt("viewport-width")
			height, _ := cmd.Flags().GetInt("viewport-height")
			opts := capture.Options{URL: url, OutputPath: args[0], Width: width, Height: height}

			if url != "" {
				return capture.WidgetPNG(cmd.Context(), opts)
			}

			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			url, stop, err := servePrivate(app)
			if err != nil {
				return err
			}
			defer stop()

			opts.URL = url
			if err := capture.WidgetPNG(cmd.Context(), opts); err != nil {
				return err
			}
			appLog.Info("snapshot written", "path", args[0])
			return nil
		},
	}
	cmd.Flags().String("url", "", "Capture a running server instead of an in-process one")
	cmd.Flags().Int("viewport-width", capture.DefaultWidth, "Browser viewport width")
	cmd.Flags().Int("viewport-height", capture.DefaultHeight, "Browser viewport height")
	return cmd
}

// servePrivate serves the widget page on an ephemeral loopback port, without
// basic auth, for the headless browser. stop shuts the listener down.
func servePrivate(app *App) (url string, stop func(), err error) {
	cfg := *app.Config
	cfg.BasicAuth = nil

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: web.NewServer(&cfg, app.Service, "").Handler()}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("private widget server failed", err)
		}
	}()
	return "http://" + ln.Addr().String() + "/", func() { _ = srv.Close() }, nil
}
