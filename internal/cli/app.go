package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/recsync/internal/config"
	"github.com/roach88/recsync/internal/engine"
	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/plugin"
	"github.com/roach88/recsync/internal/store"
	"github.com/roach88/recsync/internal/transform"
)

// app is the wiring shared by commands that touch the live store.
type app struct {
	settings  *config.Settings
	store     *store.Store
	svc       *engine.Service
	formatter *OutputFormatter
	logger    *slog.Logger
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadSettings reads the settings file and applies environment overrides.
func loadSettings(opts *RootOptions) (*config.Settings, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	settings, err := config.Load(afero.NewOsFs(), cwd, opts.Config)
	if err != nil {
		return nil, err
	}
	if err := settings.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return settings, nil
}

// openApp loads settings, opens the live store and builds the engine.
// Errors are reported through the formatter and returned as ExitErrors.
func openApp(cmd *cobra.Command, opts *RootOptions, engineOpts ...engine.Option) (*app, error) {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd)
	ctx := commandContext(cmd)

	settings, err := loadSettings(opts)
	if err != nil {
		return nil, formatter.Fail("failed to load settings", err)
	}
	formatter.VerboseLog("Using database %s", settings.Database)

	if err := os.MkdirAll(filepath.Dir(settings.Database), 0o755); err != nil {
		return nil, storeError(formatter, err)
	}
	st, err := store.Open(settings.Database, store.WithOwnerTypes(settings.OwnerTypes...))
	if err != nil {
		return nil, storeError(formatter, err)
	}
	if err := seedStore(ctx, st, settings); err != nil {
		st.Close()
		return nil, storeError(formatter, err)
	}

	transforms := transform.Default()
	for _, h := range settings.Handlers {
		handler, ok := transform.Builtin(h.Builtin)
		if !ok {
			st.Close()
			return nil, formatter.Fail("failed to load settings", &config.Error{Message: "unknown builtin handler " + h.Builtin})
		}
		transforms.Register(h.Type, handler, h.Weight)
	}

	engineOptions := append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithFs(afero.NewOsFs()),
		engine.WithSources(settings.Sources, settings.DefaultSource),
		engine.WithFilesDir(settings.FilesDir),
		engine.WithIgnoredKeys(settings.IgnoredKeys...),
		engine.WithInstalling(settings.Installing),
		engine.WithOwnerID(settings.OwnerID),
		engine.WithTransforms(transforms),
		engine.WithPlugins(plugin.Default(nil)),
	}, engineOpts...)

	return &app{
		settings:  settings,
		store:     st,
		svc:       engine.NewService(engine.New(st, engineOptions...)),
		formatter: formatter,
		logger:    logger,
	}, nil
}

func storeError(f *OutputFormatter, err error) error {
	if outErr := f.Error(ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "failed to open database", err)
}

// seedStore writes the configured languages and field definitions.
func seedStore(ctx context.Context, st *store.Store, settings *config.Settings) error {
	if len(settings.Languages) > 0 {
		langs := make([]entity.Language, len(settings.Languages))
		for i, l := range settings.Languages {
			langs[i] = entity.Language{Code: l.Code, Default: l.Default}
		}
		if err := st.SetLanguages(ctx, langs); err != nil {
			return err
		}
	}
	for _, f := range settings.Fields {
		def := entity.FieldDefinition{
			EntityType: f.EntityType,
			Bundle:     f.Bundle,
			Name:       f.Name,
			Type:       f.Type,
			TargetType: f.TargetType,
		}
		if err := st.DefineField(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the live store.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
