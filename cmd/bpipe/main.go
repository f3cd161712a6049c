// Command bpipe serves the demo users and items API and inspects its route table.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	_ "github.com/joho/godotenv/autoload"
)

// CLI is the command line interface of bpipe.
type CLI struct {
	Serve  ServeCmd  `kong:"cmd,help='Run the demo API.'"`
	Routes RoutesCmd `kong:"cmd,help='Print the demo route table.'"`
}

type runContext struct {
	ctx    context.Context
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c CLI
	parser, err := kong.New(&c,
		kong.Name("bpipe"),
		kong.Description("A request pipeline demo."),
		kong.UsageOnError(),
		kong.DefaultEnvars("BPIPE"),
		kong.Writers(stdout, stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	)
	if err != nil {
		return errors.Wrap(err, "create cli parser")
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parse arguments")
	}

	return kctx.Run(&runContext{ctx: ctx, stdout: stdout})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "bpipe: %v\n", err)
		os.Exit(1)
	}
}
