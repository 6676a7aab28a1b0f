// Command adminctl is the terminal rendition of the admin console. It keeps
// the operator's bearer token in a credential store between invocations, so
// "adminctl login" once is enough for later commands until the token expires.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/spec-kit/admin-console/internal/apiclient"
	"github.com/spec-kit/admin-console/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], environment{stdout: os.Stdout, stderr: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// environment carries process-level dependencies so tests can substitute them.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	// doer overrides the HTTP transport of the API client.
	doer apiclient.Doer
	// prompt reads a password interactively. Nil means the terminal.
	prompt func() (string, error)
}

// globalOptions are the flags accepted before the subcommand.
type globalOptions struct {
	APIURL         string
	CredentialFile string
	Backend        string
	RoutesFile     string
	LogLevel       string
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, env environment) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := globalOptions{
		APIURL:         cfg.Console.APIBaseURL,
		CredentialFile: cfg.Console.CredentialFile,
		Backend:        cfg.Console.CredentialBackend,
		RoutesFile:     cfg.Console.RoutesFile,
		LogLevel:       "warn",
	}

	flagSet := pflag.NewFlagSet("adminctl", pflag.ContinueOnError)
	flagSet.SetOutput(env.stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.APIURL, "api", opts.APIURL, "admin API base URL")
	flagSet.StringVar(&opts.CredentialFile, "credential-file", opts.CredentialFile, "credential file used by the file backend")
	flagSet.StringVar(&opts.Backend, "backend", opts.Backend, "credential backend: file, redis or memory")
	flagSet.StringVar(&opts.RoutesFile, "routes", opts.RoutesFile, "YAML route manifest (default: built-in console routes)")
	flagSet.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level written to stderr")
	flagSet.Usage = func() { printUsage(env.stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(env.stderr, flagSet)
		return fmt.Errorf("%w: subcommand required", errUsage)
	}

	command, ok := commands[rest[0]]
	if !ok {
		printUsage(env.stderr, flagSet)
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, rest[0])
	}

	cfg.Logger.Level = opts.LogLevel
	console, err := openConsole(ctx, cfg, opts, env)
	if err != nil {
		return err
	}
	defer console.Close()

	return command(ctx, console, rest[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Usage: adminctl [global flags] <subcommand> [args]

Subcommands:
  login <email>      Sign in and keep the session (--password-file, or prompt)
  logout             Sign out and forget the stored credential
  whoami             Show the current session
  open <location>    Show what the console would render for a location
  routes             List console routes and whether they are admitted
  get <path>         GET an API path with the session's credential

Global flags:
%s`, flagSet.FlagUsages())
}
