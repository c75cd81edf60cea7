// Package cli implements the clashapi command line
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexbotov/clashapi/internal/audit"
	"github.com/alexbotov/clashapi/internal/cache"
	"github.com/alexbotov/clashapi/internal/config"
	"github.com/alexbotov/clashapi/internal/database"
	"github.com/alexbotov/clashapi/internal/keyring"
	"github.com/alexbotov/clashapi/internal/logging"
	"github.com/alexbotov/clashapi/pkg/clash"
)

// closeTimeout bounds the logout that ends every command
const closeTimeout = 10 * time.Second

// options holds the persistent flags
type options struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "clashapi",
		Short: "Clash of Clans developer key manager and API client",
		Long: `clashapi logs in to the Clash of Clans developer portal, manages API keys
bound to this machine's public IP and queries the statistics API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file (overrides CLASH_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides CLASH_LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")

	root.AddCommand(
		newLoginCommand(opts),
		newKeysCommand(opts),
		newClanCommand(opts),
		newPlayerCommand(opts),
		newServeCommand(opts),
		newHashTokenCommand(),
	)
	return root
}

// runtime is the shared state of one command run
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	audit  *audit.Service
	cache  *cache.Redis
	db     *database.DB
}

// start loads configuration and opens the audit store and response cache
func (o *options) start(ctx context.Context) (*runtime, error) {
	if o.configPath != "" {
		os.Setenv("CLASH_CONFIG", o.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}

	store := audit.Store(audit.NewMemoryStore(0))
	if cfg.Database.DSN != "" {
		db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.db = db
		if err := db.Migrate(); err != nil {
			rt.close()
			return nil, err
		}
		store = audit.NewSQLStore(db.DB)
	}
	rt.audit = audit.New(store, audit.WithLogger(logger))

	if cfg.Redis.Addr != "" {
		c, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.cache = c
	}

	return rt, nil
}

func (rt *runtime) close() {
	if rt.cache != nil {
		rt.cache.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
	_ = rt.logger.Sync()
}

func (rt *runtime) sessions() *clash.SessionManager {
	return clash.NewSessionManager(rt.cfg.PortalConfig(rt.logger))
}

// statsClient returns a statistics client without a token
func (rt *runtime) statsClient() *clash.Client {
	var c clash.Cache
	if rt.cache != nil {
		c = rt.cache
	}
	return clash.NewClient(rt.cfg.ClientConfig(rt.logger, c))
}

func (rt *runtime) openKeyring(ctx context.Context) (*keyring.Keyring, error) {
	sessions := rt.sessions()
	keys := clash.NewKeyManager(sessions, rt.cfg.IPResolver())
	return keyring.Open(ctx, sessions, keys, rt.cfg.ClashCredentials(),
		keyring.WithAudit(rt.audit), keyring.WithLogger(rt.logger))
}

// withKeyring logs in, runs fn and logs out again
func (o *options) withKeyring(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error) error {
	ctx := cmd.Context()
	rt, err := o.start(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	kr, err := rt.openKeyring(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, rt, kr)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := kr.Close(closeCtx); err != nil {
		if runErr == nil {
			return err
		}
		rt.logger.Warn("logout failed", zap.Error(err))
	}
	return runErr
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
