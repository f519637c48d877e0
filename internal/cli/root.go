package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Run is the main CLI entry point. It parses args and dispatches to the
// appropriate subcommand, returning a process exit code.
func Run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loadSirenEnvFromDotEnv(".env")

	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "check":
		return runCheck(ctx, args[1:])
	case "watch":
		return runWatch(ctx, args[1:])
	case "skip":
		return runSkip(ctx, args[1:])
	case "open":
		return runOpen(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "version", "--version", "-v":
		printVersion()
		return 0
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", args[0])
		printUsage()
		return 2
	}
}
