package main

import (
	"context"
	"os"

	"edtcal/internal/cli"
	appLog "edtcal/internal/log"
)

func main() {
	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		appLog.Error("edtcal failed", err)
		os.Exit(1)
	}
}
