package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmynk/mealsync/internal/cli"
	"github.com/mmynk/mealsync/internal/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		if format == "json" {
			(&cli.OutputFormatter{Format: format, Writer: os.Stdout}).Failure(err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", remote.Message(err))
		}
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
