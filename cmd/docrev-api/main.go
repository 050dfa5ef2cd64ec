package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/auth"
	"github.com/MarcoPoloResearchLab/docrev/internal/config"
	"github.com/MarcoPoloResearchLab/docrev/internal/logging"
	"github.com/MarcoPoloResearchLab/docrev/internal/metrics"
	"github.com/MarcoPoloResearchLab/docrev/internal/server"
	"github.com/MarcoPoloResearchLab/docrev/internal/users"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type application struct {
	configFile string
	viper      *viper.Viper
}

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	app := &application{viper: config.NewViper()}
	rootCmd := &cobra.Command{
		Use:          "docrev-api",
		Short:        "Document revision and review service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runServer(cmd.Context())
		},
	}

	rootCmd.SetOut(os.Stdout)
	app.setupFlags(rootCmd)
	rootCmd.AddCommand(
		app.newDocumentsCommand(),
		app.newSuggestionsCommand(),
		app.newVersionsCommand(),
		app.newTokenCommand(),
	)
	return rootCmd
}

func (a *application) setupFlags(cmd *cobra.Command) {
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("allowed-origins", defaults.GetString("http.allowed_origins"), "Comma separated CORS origins")
	flags.String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	flags.String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.String("redis-url", "", "Redis URL for the version cache")
	flags.Bool("reject-stale", defaults.GetBool("suggestions.reject_stale"), "Refuse to accept suggestions based on an outdated version")

	a.bindFlag(cmd, "http.address", "http-address")
	a.bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	a.bindFlag(cmd, "database.driver", "database-driver")
	a.bindFlag(cmd, "database.dsn", "database-dsn")
	a.bindFlag(cmd, "log.level", "log-level")
	a.bindFlag(cmd, "session.signing_secret", "signing-secret")
	a.bindFlag(cmd, "cache.redis_url", "redis-url")
	a.bindFlag(cmd, "suggestions.reject_stale", "reject-stale")
}

func (a *application) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := a.viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (a *application) initConfig() error {
	if a.configFile == "" {
		return nil
	}
	a.viper.SetConfigFile(a.configFile)
	return a.viper.ReadInConfig()
}

func (a *application) runServer(ctx context.Context) error {
	appConfig, err := config.Load(a.viper)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	registry, err := metrics.NewMetrics()
	if err != nil {
		return err
	}
	dispatcher := server.NewRealtimeDispatcher(registry)

	rt, err := openRuntime(appConfig, logger, dispatcher, registry)
	if err != nil {
		return err
	}
	defer rt.Close()

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	identities, err := users.NewService(users.ServiceConfig{
		Database: rt.db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		DocsService:      rt.docs,
		SessionValidator: validator,
		Identities:       identities,
		Realtime:         dispatcher,
		Metrics:          registry,
		AllowedOrigins:   appConfig.AllowedOrigins,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.DatabaseDriver),
			zap.Bool("version_cache", appConfig.CacheEnabled()),
			zap.Bool("reject_stale_suggestions", appConfig.RejectStaleSuggestions))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
