package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spec-kit/admin-console/internal/session"
)

type commandFunc func(ctx context.Context, c *console, args []string) error

var commands = map[string]commandFunc{
	"login":  runLogin,
	"logout": runLogout,
	"whoami": runWhoami,
	"open":   runOpen,
	"routes": runRoutes,
	"get":    runGet,
}

func runLogin(ctx context.Context, c *console, args []string) error {
	var passwordFile string
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	flagSet.SetOutput(c.env.stderr)
	flagSet.StringVar(&passwordFile, "password-file", "", "file containing the password, or - to prompt (default: prompt)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("%w: adminctl login <email> [--password-file path]", errUsage)
	}

	password, err := c.readPassword(passwordFile)
	if err != nil {
		return err
	}

	result := c.session.Login(ctx, flagSet.Arg(0), password)
	if !result.Success {
		return errors.New(result.Message)
	}
	snap := c.session.Snapshot()
	fmt.Fprintf(c.env.stdout, "Logged in as %s (%s)\n", snap.Identity.DisplayName, snap.Role)
	fmt.Fprintf(c.env.stdout, "continue at %s\n", result.Intent.Redirect)
	return nil
}

func (c *console) readPassword(passwordFile string) (string, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		password := strings.TrimRight(string(data), "\r\n")
		if password == "" {
			return "", fmt.Errorf("password file %s is empty", passwordFile)
		}
		return password, nil
	}
	if c.env.prompt != nil {
		return c.env.prompt()
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for interactive password prompt (use --password-file)")
	}
	fmt.Fprint(c.env.stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(c.env.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func runLogout(ctx context.Context, c *console, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: adminctl logout", errUsage)
	}
	if c.session.Snapshot().State == session.StateAuthenticated {
		// Server-side revocation is best effort; the local sign-out always happens.
		if err := c.client.Post(ctx, "/auth/logout", nil, nil); err != nil {
			c.logger.Debug("server logout failed", zap.Error(err))
		}
	}
	intent := c.session.Logout()
	fmt.Fprintf(c.env.stdout, "Logged out, continue at %s\n", intent.Redirect)
	return nil
}

func runWhoami(_ context.Context, c *console, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: adminctl whoami", errUsage)
	}
	snap := c.session.Snapshot()
	w := tabwriter.NewWriter(c.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "state\t%s\n", snap.State)
	if snap.Identity != nil {
		fmt.Fprintf(w, "id\t%s\n", snap.Identity.ID)
		fmt.Fprintf(w, "name\t%s\n", snap.Identity.DisplayName)
		fmt.Fprintf(w, "email\t%s\n", snap.Identity.Email)
	}
	fmt.Fprintf(w, "role\t%s\n", snap.Role)
	fmt.Fprintf(w, "permissions\t%s\n", strings.Join(snap.Permissions.Strings(), ","))
	return w.Flush()
}

func runOpen(_ context.Context, c *console, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: adminctl open <location>", errUsage)
	}
	nav := c.router.Navigate(c.session.Snapshot(), args[0])

	w := tabwriter.NewWriter(c.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "route\t%s (%s)\n", nav.Route.Path, nav.Route.Title)
	fmt.Fprintf(w, "outcome\t%s\n", nav.Decision.Outcome)
	if nav.Decision.Redirect != "" {
		fmt.Fprintf(w, "redirect\t%s\n", nav.Decision.Redirect)
	}
	return w.Flush()
}

func runRoutes(_ context.Context, c *console, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: adminctl routes", errUsage)
	}
	snap := c.session.Snapshot()
	w := tabwriter.NewWriter(c.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTITLE\tCAPABILITY\tOUTCOME")
	for _, route := range c.router.Routes() {
		capability := string(route.Capability)
		switch {
		case route.Public:
			capability = "(public)"
		case capability == "":
			capability = "-"
		}
		nav := c.router.Navigate(snap, route.Path)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", route.Path, route.Title, capability, nav.Decision.Outcome)
	}
	return w.Flush()
}

func runGet(ctx context.Context, c *console, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: adminctl get <path>", errUsage)
	}
	var payload json.RawMessage
	if err := c.client.Get(ctx, args[0], &payload); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		_, err = c.env.stdout.Write(append(payload, '\n'))
		return err
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(c.env.stdout)
	return err
}
