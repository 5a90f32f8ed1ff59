package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/cli"
)

// main is the entrypoint for the munge application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	os.Exit(report(os.Stderr, err))
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	return cli.Execute(ctx, outW, logW, args)
}

// report prints err with its hints and returns the process exit code.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	code := 1
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}
	fmt.Fprintln(w, "Error:", err)
	if hints := errors.FlattenHints(err); hints != "" {
		for _, h := range strings.Split(hints, "\n") {
			fmt.Fprintln(w, "Hint:", h)
		}
	}
	return code
}
