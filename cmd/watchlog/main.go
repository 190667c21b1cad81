// Command watchlog is the command line and terminal client for a watch log backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/okian/watchlog/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.New().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(color.Error, color.HiRedString("error:"), err)
		os.Exit(1)
	}
}
