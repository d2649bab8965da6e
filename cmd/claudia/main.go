package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"claudia/internal/errs"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds to exit statuses so scripts can tell a
// missing id from a busy lock without parsing messages.
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return 2
	case errs.KindInvalidArgument:
		return 3
	case errs.KindConflict:
		return 4
	case errs.KindLockTimeout, errs.KindUnavailable:
		return 5
	}
	return 1
}
