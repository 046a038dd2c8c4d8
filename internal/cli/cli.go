// Package cli implements the direqt command line tool.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/direqt/direqt-go/internal/accounts"
	"github.com/direqt/direqt-go/internal/platform/config"
	"github.com/direqt/direqt-go/pkg/messaging"
)

const (
	ProjectFile = "direqt.json"
	globalDir   = ".direqt"
	globalFile  = "config.json"
	envPrefix   = "DIREQT_"
)

// Configuration keys, shared by flags, files and DIREQT_* variables.
const (
	KeyAPIRoot          = "apiroot"
	KeyAdsRoot          = "adsroot"
	KeyAPIKeyID         = "apikey_id"
	KeyAPIKeySecret     = "apikey_secret"
	KeyAPIToken         = "api_token"
	KeyAccessToken      = "access_token"
	KeySigningSecret    = "signing_secret"
	KeyMessagingAPIRoot = "messaging_apiroot"
)

// ErrUsage means usage was printed and the process should exit non-zero.
var ErrUsage = errors.New("usage")

var defaults = map[string]string{
	KeyAPIRoot:          accounts.DefaultAPIRoot,
	KeyAdsRoot:          accounts.DefaultAdsRoot,
	KeyMessagingAPIRoot: messaging.DefaultAPIRoot,
}

// globalFlags maps flag names to configuration keys.
var globalFlags = []struct {
	name, key, usage string
}{
	{"apiroot", KeyAPIRoot, "account API base URL"},
	{"adsroot", KeyAdsRoot, "ads API base URL"},
	{"apikey-id", KeyAPIKeyID, "API key id"},
	{"apikey-secret", KeyAPIKeySecret, "API key secret"},
	{"api-token", KeyAPIToken, "API token from signin"},
	{"access-token", KeyAccessToken, "bot access token"},
	{"signing-secret", KeySigningSecret, "bot webhook signing secret"},
	{"messaging-apiroot", KeyMessagingAPIRoot, "messaging gateway base URL"},
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *App, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"init", "write ./direqt.json with the current settings", runInit},
		{"register", "create a new Direqt account", runRegister},
		{"signin", "sign in and store an API token", runSignIn},
		{"generate-api-key", "create an API key and store it", runGenerateAPIKey},
		{"get-account-info", "show information about the current account", runAccountInfo},
		{"current-key", "show the API key in effect and where it came from", runCurrentKey},
		{"get-publisher-id", "show the publisher id for the current account", runPublisherID},
		{"webhook", "get, set or delete the bot's webhook (get|set <url> [instance-id]|delete)", runWebhook},
		{"sign", "print signature headers for a request body", runSign},
		{"version", "print the version", runVersion},
		{"help", "show this help", runHelp},
	}
}

// App is one invocation of the CLI.
type App struct {
	Version    string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	WorkDir    string
	HomeDir    string
	HTTPClient *http.Client
	Now        func() time.Time

	sources config.Sources
}

// New returns an App bound to the process's standard streams and directories.
func New(version string) *App {
	wd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return &App{
		Version: version,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		WorkDir: wd,
		HomeDir: home,
		Now:     time.Now,
	}
}

// Run parses global flags, layers configuration and dispatches to a command.
func (a *App) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("direqt", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() { a.usage(a.Stderr) }
	for _, f := range globalFlags {
		fs.String(f.name, "", f.usage)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return ErrUsage
	}

	flagValues := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		for _, g := range globalFlags {
			if g.name == f.Name {
				flagValues[g.key] = f.Value.String()
			}
		}
	})

	sources, err := a.loadSources(flagValues)
	if err != nil {
		return err
	}
	a.sources = sources

	if fs.NArg() < 1 {
		a.usage(a.Stderr)
		return ErrUsage
	}

	name := fs.Arg(0)
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(ctx, a, fs.Args()[1:])
		}
	}
	fmt.Fprintf(a.Stderr, "Unrecognized command '%s'\n\n", name)
	a.usage(a.Stderr)
	return ErrUsage
}

func (a *App) loadSources(flagValues map[string]string) (config.Sources, error) {
	project, err := config.FileSource("project", a.projectPath())
	if err != nil {
		return nil, err
	}
	global, err := config.FileSource("global", a.globalPath())
	if err != nil {
		return nil, err
	}
	return config.Sources{
		config.MapSource("flag", flagValues),
		project,
		config.EnvSource("env", envPrefix),
		global,
		config.MapSource("default", defaults),
	}, nil
}

func (a *App) projectPath() string {
	return filepath.Join(a.WorkDir, ProjectFile)
}

func (a *App) globalPath() string {
	return filepath.Join(a.HomeDir, globalDir, globalFile)
}

func (a *App) get(key string) string {
	return a.sources.Get(key)
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *App) accountsClient() *accounts.Client {
	return accounts.NewClient(a.get(KeyAPIRoot), a.get(KeyAdsRoot), accounts.Credentials{
		APIToken:     a.get(KeyAPIToken),
		APIKeyID:     a.get(KeyAPIKeyID),
		APIKeySecret: a.get(KeyAPIKeySecret),
	}, accounts.WithHTTPClient(a.HTTPClient))
}

func (a *App) usage(w io.Writer) {
	fmt.Fprintf(w, "direqt v%s - Command Line Interface to Direqt\n", a.Version)
	fmt.Fprintln(w, "usage: direqt [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Where <command> is one of:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-18s - %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	names := make([]string, 0, len(globalFlags))
	for _, f := range globalFlags {
		names = append(names, fmt.Sprintf("  -%-18s %s", f.name, f.usage))
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	if a.sources != nil {
		fmt.Fprintln(w)
		a.printKeyStatus(w)
	}
}

// printKeyStatus shows the resolved API root and key without revealing the secret.
func (a *App) printKeyStatus(w io.Writer) {
	apiRoot, src, _ := a.sources.Resolve(KeyAPIRoot)
	fmt.Fprintf(w, "APIROOT:       '%s' (%s)\n", apiRoot, src)

	if id, src, ok := a.sources.Resolve(KeyAPIKeyID); ok {
		fmt.Fprintf(w, "APIKEY_ID:     '%s' (%s)\n", id, src)
	} else {
		fmt.Fprintln(w, "APIKEY_ID:     <not set>")
	}

	if _, src, ok := a.sources.Resolve(KeyAPIKeySecret); ok {
		fmt.Fprintf(w, "APIKEY_SECRET: [redacted] (%s)\n", src)
	} else {
		fmt.Fprintln(w, "APIKEY_SECRET: <not set>")
	}
}

func runVersion(_ context.Context, a *App, _ []string) error {
	fmt.Fprintf(a.Stdout, "direqt v%s\n", a.Version)
	return nil
}

func runHelp(_ context.Context, a *App, _ []string) error {
	a.usage(a.Stdout)
	return nil
}

// parseFlags parses a command's own flags, writing errors to stderr.
func (a *App) parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(a.Stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrUsage
		}
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return nil
}
