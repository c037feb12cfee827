package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/BlakeDanielson/cyrustrack/internal/config"
	"github.com/BlakeDanielson/cyrustrack/internal/csvimport"
	"github.com/BlakeDanielson/cyrustrack/internal/database"
	"github.com/BlakeDanielson/cyrustrack/internal/feedback"
	"github.com/BlakeDanielson/cyrustrack/internal/geocode"
	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"github.com/BlakeDanielson/cyrustrack/internal/images"
	"github.com/BlakeDanielson/cyrustrack/internal/locations"
	"github.com/BlakeDanielson/cyrustrack/internal/logging"
	"github.com/BlakeDanielson/cyrustrack/internal/server"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cyrustrack-api",
		Short: "Consumption session tracking service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newImportCSVCommand(),
		newBackfillGeocodeCommand(),
		newDedupeLocationsCommand(),
		newSyncCommand(),
		newExportCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("local-data-path", defaults.GetString("local.data_path"), "Local JSON data file path")
	cmd.PersistentFlags().String("remote-base-url", defaults.GetString("remote.base_url"), "Remote API base URL for sync")
	cmd.PersistentFlags().String("geocoder-url", defaults.GetString("geocoder.url"), "Geocoding search endpoint")
	cmd.PersistentFlags().String("s3-bucket", defaults.GetString("s3.bucket"), "Object storage bucket for session images")
	cmd.PersistentFlags().String("s3-endpoint", defaults.GetString("s3.endpoint"), "Object storage endpoint (S3-compatible)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "local.data_path", "local-data-path")
	bindFlag(cmd, "remote.base_url", "remote-base-url")
	bindFlag(cmd, "geocoder.url", "geocoder-url")
	bindFlag(cmd, "s3.bucket", "s3-bucket")
	bindFlag(cmd, "s3.endpoint", "s3-endpoint")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// services bundles everything the server and the subcommands wire up.
type services struct {
	config      config.AppConfig
	logger      *zap.Logger
	sessions    *sessions.Store
	locations   *locations.Resolver
	maintenance *locations.Maintenance
	feedback    *feedback.Service
	images      *images.Service
	importer    *csvimport.Importer
	close       func()
}

func buildServices(ctx context.Context) (*services, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		sqlDB.Close()
		logger.Sync() //nolint:errcheck
	}

	idProvider := identity.NewUUIDProvider()

	resolver, err := locations.NewResolver(locations.ResolverConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logging.Named(logger, "locations"),
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	geocoder, err := geocode.NewClient(geocode.ClientConfig{
		BaseURL: appConfig.GeocoderURL,
		Logger:  logging.Named(logger, "geocode"),
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	maintenance, err := locations.NewMaintenance(locations.MaintenanceConfig{
		Database: db,
		Geocoder: geocoder,
		Clock:    time.Now,
		Logger:   logging.Named(logger, "locations"),
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	store, err := sessions.NewStore(sessions.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Locations:  resolver,
		Logger:     logging.Named(logger, "sessions"),
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	if err := store.Refresh(ctx); err != nil {
		closeAll()
		return nil, err
	}

	feedbackService, err := feedback.NewService(feedback.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logging.Named(logger, "feedback"),
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	var imageService *images.Service
	if appConfig.S3Bucket != "" {
		storage, err := images.NewS3Storage(ctx, images.S3Config{
			Region:    appConfig.S3Region,
			Bucket:    appConfig.S3Bucket,
			AccessKey: appConfig.S3AccessKey,
			SecretKey: appConfig.S3SecretKey,
			Endpoint:  appConfig.S3Endpoint,
			Logger:    logging.Named(logger, "images"),
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		imageService, err = images.NewService(images.ServiceConfig{
			Database:   db,
			Storage:    storage,
			Clock:      time.Now,
			IDProvider: idProvider,
			Logger:     logging.Named(logger, "images"),
		})
		if err != nil {
			closeAll()
			return nil, err
		}
	}

	importer, err := csvimport.NewImporter(csvimport.ImporterConfig{
		Sessions: store,
		Logger:   logging.Named(logger, "csvimport"),
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	return &services{
		config:      appConfig,
		logger:      logger,
		sessions:    store,
		locations:   resolver,
		maintenance: maintenance,
		feedback:    feedbackService,
		images:      imageService,
		importer:    importer,
		close:       closeAll,
	}, nil
}

func runServer(ctx context.Context) error {
	deps, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:    deps.sessions,
		Locations:   deps.locations,
		Maintenance: deps.maintenance,
		Feedback:    deps.feedback,
		Images:      deps.images,
		Importer:    deps.importer,
		Logger:      deps.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    deps.config.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		deps.logger.Info("server starting", zap.String("address", deps.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
