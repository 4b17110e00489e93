package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/formatter"
	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/repositories"
	"github.com/desertthunder/footprint/internal/services"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/state"
	"github.com/desertthunder/footprint/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Heavy dependencies (database, dataset, uploader) are opened on first use, so commands that only
// touch local state never connect to anything.
type Runner struct {
	config     *shared.Config
	configPath string
	statePath  string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	registry   *prometheus.Registry

	db       *sqlx.DB
	ownsDB   bool
	dataset  *geo.Dataset
	uploader services.Uploader
	assets   *services.AssetClient
	tracker  *tasks.Tracker
	exports  *tasks.ExportEngine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB, Dataset and Uploader are normally built from the config; tests inject them.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	StatePath  string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sqlx.DB
	Dataset    *geo.Dataset
	Uploader   services.Uploader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		statePath:  opts.StatePath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		registry:   registry,
		db:         opts.DB,
		dataset:    opts.Dataset,
		uploader:   opts.Uploader,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "footprint",
		Usage:   "Track the cities you have visited and export them as a photo book",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("FOOTPRINT_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Path to the state file (default: from config)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Configure,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, migrateCommand, loginCommand, logoutCommand, whoamiCommand, cityCommand, photoCommand,
		searchCommand, statsCommand, snapshotCommand, exportCommand, themeCommand, colorModeCommand, serveCommand,
		tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the config file, dotenv files and environment overrides, and applies global flags.
//
// A missing config file keeps the current (default) config.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if err := shared.LoadEnvFiles(); err != nil {
		return ctx, err
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
			r.logger.Debug("loaded config", "path", r.configPath)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}
	shared.ApplyEnv(r.config)

	if path := cmd.String("state"); path != "" {
		r.statePath = path
	}
	if r.statePath == "" {
		r.statePath = r.config.State.Path
	}
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database if the runner opened it.
func (r *Runner) Close() {
	if r.db != nil && r.ownsDB {
		r.db.Close()
		r.db = nil
	}
}

func (r *Runner) store() *state.Store {
	return state.NewStore(r.statePath)
}

// database opens the configured database and brings its schema up to date.
func (r *Runner) database() (*sqlx.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Driver, r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db, r.ownsDB = db, true
	return db, nil
}

func (r *Runner) assetClient() *services.AssetClient {
	if r.assets == nil {
		r.assets = services.NewAssetClient(r.config.Assets.BaseURL, services.AssetOptions{
			Client:            r.httpClient,
			RequestsPerSecond: r.config.Assets.RequestsPerSecond,
			Timeout:           r.config.Assets.Timeout(),
			Logger:            r.logger,
		})
	}
	return r.assets
}

// loadDataset fetches the city GeoJSON. Without it, city names are not validated and map commands fail.
func (r *Runner) loadDataset(ctx context.Context) *geo.Dataset {
	if r.dataset != nil {
		return r.dataset
	}

	data, err := r.assetClient().FetchGeoJSON(ctx, r.config.Assets.GeoJSON)
	if err != nil {
		r.logger.Warn("city dataset unavailable; city names will not be validated", "error", err)
		return nil
	}
	dataset, err := geo.ParseDataset(data)
	if err != nil {
		r.logger.Warn("city dataset invalid; city names will not be validated", "error", err)
		return nil
	}
	r.logger.Debug("loaded city dataset", "cities", dataset.Len())

	r.dataset = dataset
	return dataset
}

// open wires the tracker on first use.
func (r *Runner) open(ctx context.Context) (*tasks.Tracker, error) {
	if r.tracker != nil {
		return r.tracker, nil
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	if r.uploader == nil {
		uploader, err := services.NewUploader(ctx, r.config.Upload, r.httpClient)
		if err != nil {
			return nil, err
		}
		r.uploader = uploader
	}

	r.tracker = tasks.NewTracker(
		repositories.NewUserRepository(db),
		repositories.NewCityRepository(db),
		r.loadDataset(ctx),
		r.uploader,
		r.logger,
	)
	return r.tracker, nil
}

func (r *Runner) snapshotter(dataset *geo.Dataset) *geo.Snapshotter {
	return geo.NewSnapshotter(dataset, geo.SnapshotOptions{
		Width:       r.config.Export.SnapshotWidth,
		Height:      r.config.Export.SnapshotHeight,
		SettleDelay: r.config.Export.SettleDelay(),
		Logger:      r.logger,
	})
}

// exportEngine wires the PDF pipeline; it needs the dataset for the map snapshot.
func (r *Runner) exportEngine(ctx context.Context) (*tasks.ExportEngine, error) {
	if r.exports != nil {
		return r.exports, nil
	}

	tracker, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if tracker.Dataset() == nil {
		return nil, fmt.Errorf("%w: the city dataset is required to draw the map", shared.ErrAssetUnavailable)
	}

	r.exports = tasks.NewExportEngine(tasks.ExportEngineOpts{
		Cities:   repositories.NewCityRepository(r.db),
		Snapshot: r.snapshotter(tracker.Dataset()),
		Assets:   r.assetClient(),
		Renderer: formatter.NewPDFRenderer(r.config.Export.Compress, r.logger),
		FontName: r.config.Assets.Font,
		Metrics:  tasks.NewMetrics(r.registry),
		Logger:   r.logger,
	})
	return r.exports, nil
}

// currentUser resolves the logged-in identity from the state file.
func (r *Runner) currentUser(ctx context.Context) (*tasks.Tracker, *models.User, error) {
	st, err := r.store().Load()
	if err != nil {
		return nil, nil, err
	}
	identity, err := st.RequireIdentity()
	if err != nil {
		return nil, nil, err
	}

	tracker, err := r.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	user, err := tracker.User(ctx, identity.Username)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}
	return tracker, user, nil
}

// requireArg returns the named positional argument or ErrMissingArgument.
func requireArg(cmd *cli.Command, name string) (string, error) {
	value := strings.TrimSpace(cmd.StringArg(name))
	if value == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return value, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
