// Package cli implements fitversectl, a terminal client for the FitVerse workout API.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fitverse/pkg/bus"
	"fitverse/pkg/export"
	"fitverse/pkg/session"
	"fitverse/pkg/workoutapi"
	"fitverse/pkg/workouts"
)

// ErrNotLoggedIn is returned by commands that need a stored token.
var ErrNotLoggedIn = fmt.Errorf("%w: run `fitversectl login` first", workoutapi.ErrUnauthenticated)

// IO is the process environment a command runs against.
type IO struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Getenv func(string) string
}

// StdIO uses the real process streams and environment.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Getenv: os.Getenv}
}

type globalFlags struct {
	configPath string
	apiURL     string
	tokenFile  string
	verbose    bool
}

// app is built once per invocation by the root command's PersistentPreRunE.
type app struct {
	io      IO
	in      *bufio.Reader
	cfg     Config
	logger  zerolog.Logger
	client  *workoutapi.Client
	store   *session.FileStore
	session *session.Manager
	bus     *bus.Bus

	configPath string
	uploader   func(ctx context.Context) (export.Uploader, error)
}

// NewRootCommand wires every fitversectl subcommand.
func NewRootCommand(stdio IO) *cobra.Command {
	return newRootCommand(stdio, &app{uploader: s3Uploader})
}

func newRootCommand(stdio IO, a *app) *cobra.Command {
	if stdio.Getenv == nil {
		stdio.Getenv = os.Getenv
	}
	if stdio.In == nil {
		stdio.In = strings.NewReader("")
	}
	a.io = stdio
	a.in = bufio.NewReader(stdio.In)
	if a.uploader == nil {
		a.uploader = s3Uploader
	}
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "fitversectl",
		Short:         "Track workouts against the FitVerse API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context(), flags)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	cmd.SetIn(stdio.In)
	cmd.SetOut(stdio.Out)
	cmd.SetErr(stdio.Err)

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default <config dir>/fitverse/config.yaml, or $FITVERSE_CONFIG)")
	pf.StringVar(&flags.apiURL, "api-url", "", "Workout API base URL")
	pf.StringVar(&flags.tokenFile, "token-file", "", "Where the session token is kept")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log API calls to stderr")

	cmd.AddCommand(newRegisterCommand(a))
	cmd.AddCommand(newLoginCommand(a))
	cmd.AddCommand(newLogoutCommand(a))
	cmd.AddCommand(newWhoamiCommand(a))
	cmd.AddCommand(newWorkoutsCommand(a))
	cmd.AddCommand(newEventsCommand(a))
	cmd.AddCommand(newConfigCommand(a))
	return cmd
}

func (a *app) init(ctx context.Context, flags globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := zerolog.WarnLevel
	if flags.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: a.io.Err, NoColor: true}).
		Level(level).With().Timestamp().Logger()

	path := flags.configPath
	if path == "" {
		path = a.io.Getenv("FITVERSE_CONFIG")
	}
	if path == "" {
		if p, err := DefaultConfigPath(); err == nil {
			path = p
		}
	}
	a.configPath = path
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.applyEnv(a.io.Getenv); err != nil {
		return err
	}
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	if flags.tokenFile != "" {
		cfg.TokenFile = flags.tokenFile
	}
	if cfg, err = cfg.withDefaults(); err != nil {
		return err
	}
	a.cfg = cfg

	a.client, err = workoutapi.New(cfg.APIURL,
		workoutapi.WithTimeout(cfg.APITimeout),
		workoutapi.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	var storeOpts []session.FileOption
	if cfg.TokenPassphrase != "" {
		storeOpts = append(storeOpts, session.WithPassphrase(cfg.TokenPassphrase))
	}
	if cfg.TokenIdentity != "" {
		storeOpts = append(storeOpts, session.WithIdentity(cfg.TokenIdentity))
	}
	a.store, err = session.NewFileStore(cfg.TokenFile, storeOpts...)
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}

	a.session = session.NewManager(a.client, a.store,
		session.WithClearOnInvalid(true),
		session.WithLogger(a.logger),
	)
	if err := a.session.Init(ctx); err != nil {
		if errors.Is(err, session.ErrLocked) {
			return fmt.Errorf("%w (set FITVERSE_TOKEN_PASSPHRASE or FITVERSE_TOKEN_IDENTITY)", err)
		}
		return err
	}
	return nil
}

func (a *app) close() {
	if a.bus != nil {
		a.bus.Close()
		a.bus = nil
	}
	if a.session != nil {
		a.session.Close()
	}
}

// requireSession is the CLI route guard: a presence check on the stored token.
func (a *app) requireSession() error {
	if !a.session.HasToken() {
		return ErrNotLoggedIn
	}
	return nil
}

// publisher connects to NATS when configured. Failure only disables events.
func (a *app) publisher() workouts.Publisher {
	if a.cfg.NATSURL == "" {
		return nil
	}
	if a.bus == nil {
		b, err := bus.Connect(a.cfg.NATSURL, "fitversectl", a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Msg("nats unavailable; workout events disabled")
			return nil
		}
		a.bus = b
	}
	return a.bus
}

// expired reports a rejected token. The stored token has already been cleared by the manager
// or is cleared here.
func (a *app) expired(ctx context.Context) error {
	a.session.Expire(ctx)
	return fmt.Errorf("%w: session expired, log in again", workoutapi.ErrUnauthenticated)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.io.Out, format, args...)
}

// prompt asks for a value on the command's input stream.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.io.Err, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no input for %q", strings.TrimSpace(strings.TrimSuffix(label, ":")))
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
