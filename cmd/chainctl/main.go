package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/readalong/chainstore/pkg/chainctl"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := chainctl.Main(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "chainctl: %v\n", err)
		var exit *chainctl.ExitError
		if errors.As(err, &exit) {
			return exit.ExitCode()
		}
		return 1
	}
	return 0
}
