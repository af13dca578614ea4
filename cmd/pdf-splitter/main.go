package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/internal/app"
	"github.com/joseph-ayodele/pdf-splitter/internal/async"
	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/export"
	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
	"github.com/joseph-ayodele/pdf-splitter/internal/pdf"
	"github.com/joseph-ayodele/pdf-splitter/internal/profiles"
	"github.com/joseph-ayodele/pdf-splitter/internal/repository"
)

var (
	configPath   string
	profilesPath string
	outputDir    string
	noHistory    bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf-splitter",
	Short: "Split multi-page PDFs into named files driven by index profiles",
	Long: `pdf-splitter loads a folder of PDFs, assigns pages to index profiles and
writes each group of pages to the path produced by the profile's output pattern.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config.json path (default $CONFIG_FILE or ./config.json)")
	rootCmd.PersistentFlags().StringVar(&profilesPath, "profiles", "", "profiles.json path (overrides $PROFILES_FILE)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output folder for profiles without one (overrides $OUTPUT_DIR)")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not open the export history database")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is the wired application for one command invocation.
type env struct {
	cfg      *common.Config
	logger   *slog.Logger
	store    repository.ProfileStore
	profiles *profiles.Service
	lib      *pdf.Toolkit
	db       *repository.DB
	history  repository.HistoryRepository
}

// loadEnv reads configuration, sets up logging and opens the profile store.
// The history database is opened only when withHistory is set.
func loadEnv(ctx context.Context, withHistory bool) (*env, error) {
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if profilesPath != "" {
		cfg.Profiles.File = profilesPath
	}
	if outputDir != "" {
		cfg.Export.OutputDir = outputDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	store, err := repository.NewProfileStore(cfg.Profiles.File, logger)
	if err != nil {
		logger.Error("failed to open profile store", "path", cfg.Profiles.File, "error", err)
		return nil, err
	}
	renderer := pdf.NewRenderer(cfg.Render.Renderer, cfg.Render.PdftoppmBin, pdf.NewExecRunner(logger), logger)
	e := &env{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		profiles: profiles.NewService(store, logger),
		lib:      pdf.NewToolkit(renderer, logger),
	}

	if withHistory && !noHistory && strings.TrimSpace(cfg.History.DSN) != "" {
		db, err := repository.Open(ctx, repository.Config{
			DSN:             cfg.History.DSN,
			MaxConns:        cfg.History.MaxConns,
			MinConns:        cfg.History.MinConns,
			MaxConnLifetime: cfg.History.MaxConnLifetime,
			MaxConnIdleTime: cfg.History.MaxConnIdleTime,
			DialTimeout:     cfg.History.DialTimeout,
		}, logger)
		if err != nil {
			// History is optional; splitting still works without it.
			logger.Warn("export history disabled", "error", err)
		} else {
			e.db = db
			e.history = repository.NewHistoryRepository(db, logger)
		}
	}
	return e, nil
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close(e.logger)
	}
}

// startSession wires the runner and starts the control loop. The returned stop
// function shuts both down within the configured timeout.
func (e *env) startSession(ctx context.Context, onStatus func(string)) (*app.Session, func()) {
	runner := async.NewRunner(
		ingest.NewLoader(e.lib, e.logger),
		export.NewExecutor(e.lib, e.logger),
		e.logger,
		async.WithStopTimeout(e.cfg.Tasks.StopTimeout),
	)
	session := app.New(e.profiles, runner, export.NewReporter(e.logger), e.history, app.Options{
		OutputDir:  e.cfg.Export.OutputDir,
		ReportXLSX: e.cfg.Export.ReportXLSX,
		Completer:  ingest.SourceCompleter(e.logger),
		OnStatus:   onStatus,
	}, e.logger)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := session.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("session loop ended", "error", err)
		}
	}()

	return session, func() {
		cancel()
		<-done
		sctx, scancel := context.WithTimeout(context.Background(), e.cfg.Tasks.ShutdownTimeout)
		defer scancel()
		runner.Shutdown(sctx)
	}
}

// newLogger builds the process logger: plain key/value lines without time and
// level for interactive use, or JSON when LOG_FORMAT=json.
func newLogger(cfg common.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
