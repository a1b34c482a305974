// Package main is the operator CLI of the progress engine.
//
// progressctl records daily progress, reads cached metrics and manages
// accuracy alerts against either PostgreSQL or a local SQLite file.
// Configuration comes from the environment (and an optional .env file);
// flags override it. Results are printed as JSON on stdout, logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps error kinds to distinct process exit statuses so scripts
// can tell bad input from missing rows.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case shared.IsInvalidInput(err), errors.Is(err, errNoTenant):
		return 2
	case shared.IsNotFound(err):
		return 3
	case shared.IsAccessDenied(err):
		return 4
	default:
		return 1
	}
}
