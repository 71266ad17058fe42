package main

import (
	"context"
	"os"
	"os/signal"

	"soundstage.dev/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	exitCode := cli.NewCLI().RunContext(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}
