package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"edtcal/internal/widget"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the feed now and overwrite the cached snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			res := app.Service.Refresh(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d classes\n", res.Kind, len(res.Entries))
			if res.Kind != widget.Fresh {
				return fmt.Errorf("refresh failed: %w", res.Err)
			}
			return nil
		},
	}
}
