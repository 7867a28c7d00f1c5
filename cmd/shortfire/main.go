package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/torosent/shortfire/internal/config"
)

// Exit codes. A warn verdict still exits 0.
const (
	exitOK          = 0
	exitError       = 1
	exitVerdictFail = 2
)

// errVerdictFailed marks a run that completed with a fail verdict.
var errVerdictFailed = errors.New("verdict: fail")

// app carries the process boundaries so commands can be driven from tests.
type app struct {
	stdout io.Writer
	stderr io.Writer
	loader *config.Loader
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], &app{stdout: os.Stdout, stderr: os.Stderr, loader: config.NewLoader()})
	cancel()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, a *app) int {
	root := a.rootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		if errors.Is(err, errVerdictFailed) {
			return exitVerdictFail
		}
		return exitError
	}
	return exitOK
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "shortfire",
		Short:         "Load and cache-effectiveness testing for URL shorteners",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.AddCommand(a.runCommand(), a.validateCommand(), a.scenariosCommand())
	return root
}
