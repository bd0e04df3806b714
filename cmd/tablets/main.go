// Command tablets compiles, calls and replays table-driven business rules.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/izubarev/openl-tablets-sub004/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tablets: %v\n", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
