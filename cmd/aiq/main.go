// Command aiq sends one query to the configured AI provider from a terminal.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/upb/ai-dispatcher/config"
	"github.com/upb/ai-dispatcher/services/providers"

	_ "github.com/upb/ai-dispatcher/services/providers/backends"
)

// defaultConfigPath is read when present; --config adds another file
const defaultConfigPath = "~/.config/aiq/config.yaml"

// errDispatchFailed is returned after the error line has already been printed
var errDispatchFailed = errors.New("dispatch failed")

func main() {
	os.Exit(run(os.Args[1:], newEnv(os.Stdout, os.Stderr)))
}

func run(args []string, env *runEnv) int {
	var cli CLI
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("aiq"),
		kong.Description("Ask Gemini or OpenAI a single question."),
		kong.UsageOnError(),
		kong.Writers(env.stdout, env.stderr),
		kong.Exit(func(code int) { exitCode = code }),
		kong.Configuration(yamlKongLoader, defaultConfigPath),
		kong.Vars{
			"default_provider": config.DefaultProvider,
			"default_model":    config.DefaultModel,
		},
	)
	if err != nil {
		fmt.Fprintf(env.stderr, "aiq: %v\n", err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	if err := kctx.Run(&cli.Globals, env); err != nil {
		if !errors.Is(err, errDispatchFailed) {
			fmt.Fprintf(env.stderr, "aiq: %v\n", err)
		}
		return 1
	}
	return 0
}

// runEnv carries the process surfaces commands write to
type runEnv struct {
	stdout io.Writer
	stderr io.Writer

	// registry is nil outside tests, selecting the linked-in adapters
	registry *providers.Registry
}

func newEnv(stdout, stderr io.Writer) *runEnv {
	return &runEnv{stdout: stdout, stderr: stderr}
}
