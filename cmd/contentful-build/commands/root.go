// Package commands is the contentful-build command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/static-dev/contentful/internal/build"
	"github.com/static-dev/contentful/internal/cli"
	"github.com/static-dev/contentful/internal/config"
	"github.com/static-dev/contentful/internal/constants"
	"github.com/static-dev/contentful/internal/locals"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	// ctx is canceled by Quit.
	ctx    context.Context
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce *sync.Once
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool `mapstructure:"json-logs"`

	AccessToken       string `mapstructure:"access-token"`
	SpaceID           string `mapstructure:"space-id"`
	Preview           bool
	Environment       string
	Host              string
	IncludeLevel      int    `mapstructure:"include-level"`
	JSON              string `mapstructure:"json"`
	AggressiveRefresh bool   `mapstructure:"aggressive-refresh"`
	Concurrency       int

	Root   string
	Output string

	MetricsAddr string        `mapstructure:"metrics-addr"`
	Debounce    time.Duration `mapstructure:"debounce"`
	WatchPaths  []string      `mapstructure:"watch-path"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := App{
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		readyOnce: &sync.Once{},
	}

	a.cmd = &cobra.Command{
		Use:   constants.CmdName + " COMMAND",
		Short: "Build static sites from Contentful content",
		Long: `Fetch the entries of the configured Contentful content types, then emit them as JSON
and render each item through its template into the output directory.`,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config

			if err := cli.LoadDotEnv(); err != nil {
				return err
			}
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := cli.BindEnvAliases(constants.CmdName, a.viper, map[string][]string{
				"access-token": {"CONTENTFUL_ACCESS_TOKEN"},
				"space-id":     {"CONTENTFUL_SPACE_ID"},
			}); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	if err := a.installBuild(); err != nil {
		return nil, err
	}
	if err := a.installWatch(); err != nil {
		return nil, err
	}
	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	cmd.PersistentFlags().String("access-token", "", "Contentful API access token")
	cmd.PersistentFlags().String("space-id", "", "Contentful space to read the content from")
	cmd.PersistentFlags().Bool("preview", false, "read draft content from the preview API")
	cmd.PersistentFlags().String("environment", constants.DefaultEnvironment, "space environment")
	cmd.PersistentFlags().String("host", "", "API base URL, overriding the delivery and preview hosts")
	cmd.PersistentFlags().Int("include-level", constants.DefaultIncludeLevel, "number of link levels resolved inline")
	cmd.PersistentFlags().String("json", "", "name of the JSON artifact holding every content type")
	cmd.PersistentFlags().Bool("aggressive-refresh", false, "fetch the content again on every build cycle")
	cmd.PersistentFlags().Int("concurrency", constants.DefaultConcurrency, "number of content types fetched, or items rendered, at once")

	cmd.PersistentFlags().String("root", ".", "project directory, template paths are relative to it")
	cmd.PersistentFlags().String("output", constants.DefaultOutputDir, "directory artifacts are written to, relative to the project directory")

	if err := cmd.MarkPersistentFlagDirname("root"); err != nil {
		panic(fmt.Sprintf("failed to mark root flag as directory: %v", err))
	}
	if err := cmd.MarkPersistentFlagDirname("output"); err != nil {
		panic(fmt.Sprintf("failed to mark output flag as directory: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit cancels the running build cycles.
func (a *App) Quit() {
	a.cancel()
}

// WaitReady waits for the running command to be set up.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) setReady() {
	a.readyOnce.Do(func() { close(a.ready) })
}

// newBuilder creates the builder of the configured project.
//
// Content types and template locals are read from the configuration file, if any.
func (a *App) newBuilder(reg prometheus.Registerer) (*build.Builder, error) {
	cfg := config.Default()
	cfg.AccessToken = a.config.AccessToken
	cfg.SpaceID = a.config.SpaceID
	cfg.Preview = a.config.Preview
	cfg.Environment = a.config.Environment
	cfg.Host = a.config.Host
	cfg.IncludeLevel = a.config.IncludeLevel
	cfg.JSON = a.config.JSON
	cfg.AggressiveRefresh = a.config.AggressiveRefresh
	cfg.Concurrency = a.config.Concurrency

	var globals map[string]any
	if path := a.viper.ConfigFileUsed(); path != "" {
		doc, err := config.ReadDocument(afero.NewOsFs(), path)
		if err != nil {
			return nil, err
		}
		if err := doc.Apply(&cfg); err != nil {
			return nil, err
		}
		globals = doc.Locals
	}
	cfg.AddDataTo = locals.New(globals)

	if len(cfg.ContentTypes) == 0 {
		slog.Warn("No content type configured, nothing will be fetched")
	}

	return build.New(cfg,
		build.WithRoot(a.config.Root),
		build.WithOutputDir(a.config.Output),
		build.WithRegisterer(reg),
		build.WithWatchPaths(a.config.WatchPaths...),
		build.WithDebounce(a.config.Debounce))
}
