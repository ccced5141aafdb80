package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wacontacts/internal/config"
	"wacontacts/internal/infrastructure"
	"wacontacts/internal/repository"
	"wacontacts/internal/usecases"
)

const serviceName = "wacontacts"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the wacontacts CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wacontacts",
		Short: "WhatsApp contact identity resolution and sync",
		Long:  "Resolves WhatsApp contacts to canonical identities and keeps a per-tenant contact store in sync.",

		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (overrides CONFIG_PATH)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewEnsureAdminCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd
}

// runtime is what every command shares once config is loaded.
type runtime struct {
	cfg config.Config
	log *zap.Logger
	db  infrastructure.Database
}

func (o *RootOptions) bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	logger, err := infrastructure.NewLogger(level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := infrastructure.OpenDatabase(ctx, cfg.Database.URL, cfg.Database.AuthToken)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		_ = logger.Sync()
		return nil, err
	}
	logger.Info("database ready", zap.String("dialect", db.Dialect()))
	return &runtime{cfg: cfg, log: logger, db: db}, nil
}

func (r *runtime) Close() {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Warn("close database", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

func (r *runtime) syncConfig() usecases.SyncConfig {
	return usecases.SyncConfig{
		ChunkSize:   r.cfg.Sync.ChunkSize,
		Concurrency: r.cfg.Sync.Concurrency,
		Pause: usecases.PausePolicy{
			Every: r.cfg.Sync.PauseEvery,
			Pause: r.cfg.Sync.PauseDuration(),
		},
	}
}

func (r *runtime) contactService() *usecases.ContactService {
	notifier := infrastructure.NewNotifier(r.cfg.Telegram.BotToken, r.cfg.Telegram.ReportChatID, r.log)
	return usecases.NewContactService(r.db, r.syncConfig(), notifier, r.log)
}
