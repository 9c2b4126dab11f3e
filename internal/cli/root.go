// Package cli wires configuration, the local store and the widget service
// into cobra commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"edtcal/internal/config"
	appLog "edtcal/internal/log"
	"edtcal/internal/store"
	"edtcal/internal/widget"
)

// App is the per-invocation state shared by every command.
type App struct {
	Config     *config.Config
	ConfigPath string
	KV         store.KV
	Service    *widget.Service
}

// Close releases the store.
func (a *App) Close() {
	if a.KV == nil {
		return
	}
	if err := a.KV.Close(); err != nil {
		appLog.Error("close store failed", err)
	}
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "edtcal",
		Short:         "Day-at-a-glance class timetable from an ICS feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return showCurrent(cmd, app)
		},
	}
	cmd.PersistentFlags().String("config", "", "Path to config.yaml (defaults to ~/.config/edtcal/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("width", 0, "Terminal output width in columns")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newMoveCmd("next", "Move to the following day and show it", 1))
	cmd.AddCommand(newMoveCmd("prev", "Move to the previous day and show it", -1))
	cmd.AddCommand(newTodayCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newTUICmd())

	return cmd
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "edtcal", "config.yaml"), nil
}

func initApp(cmd *cobra.Command) (*App, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		var err error
		cfgPath, err = defaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	level := cfg.LogLevel
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	kv, err := store.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}

	appLog.Debug("effective config",
		"config_path", cfgPath,
		"timezone", cfg.Timezone,
		"locale", cfg.Locale,
		"mode", cfg.Mode,
		"cache", cfg.Cache.Path,
		"max_age", cfg.Cache.MaxAge.Std().String(),
	)

	svc := widget.New(cfg, widget.NewICSFeed(cfg), kv, nil)
	return &App{Config: cfg, ConfigPath: cfgPath, KV: kv, Service: svc}, nil
}
