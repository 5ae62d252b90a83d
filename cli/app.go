// Package cli implements the gitvault command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("cli")

// commandParent is implemented by the app and the command groups commands
// attach to.
type commandParent interface {
	Command(name, help string) *kingpin.CmdClause
}

// appServices are the methods of App that command definitions depend on.
type appServices interface {
	noEngineAction(act func(ctx context.Context) error) func(*kingpin.ParseContext) error
	engineAction(act func(ctx context.Context, eng *Engine) error) func(*kingpin.ParseContext) error
	stdout() io.Writer
	stderr() io.Writer
}

// App implements the gitvault CLI: global flags plus the command tree.
type App struct {
	// global flags
	dataDir               string
	namespace             string
	manifestPath          string
	retainCount           int
	disableResetDetection bool

	logLevel string
	logFile  string
	noColor  bool

	storage storageFlags
	notify  notifyFlags

	// commands
	run       commandRun
	server    commandServer
	snapshot  commandSnapshot
	retention commandRetention
	state     commandState
	items     commandItems

	stdoutWriter io.Writer
	stderrWriter io.Writer
}

// NewApp returns an App with output attached to the process streams.
func NewApp() *App {
	return &App{
		stdoutWriter: os.Stdout,
		stderrWriter: os.Stderr,
	}
}

func (a *App) stdout() io.Writer { return a.stdoutWriter }
func (a *App) stderr() io.Writer { return a.stderrWriter }

// Attach registers all flags and commands on the given kingpin application.
func (a *App) Attach(app *kingpin.Application) {
	a.setupFlags(app)

	a.run.setup(a, app)
	a.server.setup(a, app)
	a.snapshot.setup(a, app)
	a.retention.setup(a, app)
	a.state.setup(a, app)
	a.items.setup(a, app)
}

func (a *App) setupFlags(app *kingpin.Application) {
	app.Flag("data-dir", "Directory for local state and the run lock.").Default(defaultDataDir()).Envar("GITVAULT_DATA_DIR").StringVar(&a.dataDir)
	app.Flag("namespace", "Namespace (top-level key prefix) all backups live under.").Required().Envar("GITVAULT_NAMESPACE").StringVar(&a.namespace)
	app.Flag("manifest", "Path of the backup manifest file listing items to back up.").Envar("GITVAULT_MANIFEST").StringVar(&a.manifestPath)
	app.Flag("retain", "Number of most recent backup snapshots to retain.").Default("5").Envar("GITVAULT_RETAIN").IntVar(&a.retainCount)
	app.Flag("disable-reset-detection", "Keep local state even when the remote store holds no state object.").Hidden().BoolVar(&a.disableResetDetection)

	app.Flag("log-level", "Console log level").Default("info").Envar("GITVAULT_LOG_LEVEL").EnumVar(&a.logLevel, "debug", "info", "warn", "error")
	app.Flag("log-file", "Also append logs to the given file").Envar("GITVAULT_LOG_FILE").StringVar(&a.logFile)
	app.Flag("no-color", "Disable colored output").Envar("GITVAULT_NO_COLOR").BoolVar(&a.noColor)

	a.storage.setup(app)
	a.notify.setup(app)
}

func defaultDataDir() string {
	if d, err := os.UserCacheDir(); err == nil {
		return d + "/gitvault"
	}

	return ".gitvault"
}

func (a *App) noEngineAction(act func(ctx context.Context) error) func(*kingpin.ParseContext) error {
	return func(_ *kingpin.ParseContext) error {
		if a.noColor {
			color.NoColor = true
		}

		ctx, finish, err := a.rootContext()
		if err != nil {
			return err
		}
		defer finish()

		return act(ctx)
	}
}

func (a *App) engineAction(act func(ctx context.Context, eng *Engine) error) func(*kingpin.ParseContext) error {
	return a.noEngineAction(func(ctx context.Context) error {
		eng, err := a.openEngine(ctx)
		if err != nil {
			return err
		}

		defer eng.Close(ctx)

		return act(ctx, eng)
	})
}
