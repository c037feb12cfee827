package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/BlakeDanielson/cyrustrack/internal/config"
	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"github.com/BlakeDanielson/cyrustrack/internal/logging"
	"github.com/BlakeDanielson/cyrustrack/internal/persistence"
)

func newImportCSVCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-csv <file>",
		Short: "Import legacy sessions from a CSV or TSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildServices(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.close()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			result, err := deps.importer.Import(cmd.Context(), file)
			if err != nil {
				return err
			}

			deps.logger.Info("import finished",
				zap.Int("imported", result.Imported),
				zap.Int("failed", len(result.Errors)),
			)
			for _, rowError := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "row %d: %s\n", rowError.Row, rowError.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d sessions, %d rows failed\n", result.Imported, len(result.Errors))
			if !result.Success {
				return fmt.Errorf("%d rows failed to import", len(result.Errors))
			}
			return nil
		},
	}
}

func newBackfillGeocodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-geocode",
		Short: "Geocode stored locations that are missing coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildServices(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.close()

			report, err := deps.maintenance.BackfillCoordinates(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d locations, updated %d, %d errors\n",
				report.Processed, report.Updated, len(report.Errors))
			for _, batchError := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", batchError.LocationID, batchError.Reason)
			}
			return nil
		},
	}
}

func newDedupeLocationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe-locations",
		Short: "Merge duplicate locations, repointing sessions at the earliest record",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildServices(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.close()

			report, err := deps.maintenance.Deduplicate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d duplicate groups, %d records merged, %d errors\n",
				report.Groups, report.Merged, len(report.Errors))
			for _, batchError := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", batchError.LocationID, batchError.Reason)
			}
			return nil
		},
	}
}

// buildFallbackStore wires the dual-backend store from the configured remote
// base URL and local JSON file. Used by sync and export, which operate on
// the wire-format records rather than the database.
func buildFallbackStore(logger *zap.Logger, appConfig config.AppConfig) (*persistence.FallbackStore, error) {
	if appConfig.RemoteBaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is required for this command")
	}

	remote, err := persistence.NewAPIBackend(persistence.APIBackendConfig{
		BaseURL:    appConfig.RemoteBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	local, err := persistence.NewFileBackend(persistence.FileBackendConfig{
		Path:       appConfig.LocalDataPath,
		Clock:      time.Now,
		IDProvider: identity.NewUUIDProvider(),
	})
	if err != nil {
		return nil, err
	}

	return persistence.NewFallbackStore(persistence.FallbackStoreConfig{
		Remote: remote,
		Local:  local,
		Logger: logging.Named(logger, "persistence"),
	})
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push locally stored sessions to the remote API",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			store, err := buildFallbackStore(logger, appConfig)
			if err != nil {
				return err
			}

			report, err := store.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d sessions, %d errors\n", report.Synced, len(report.Errors))
			for _, syncError := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", syncError.RecordID, syncError.Reason)
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("%d sessions failed to sync", len(report.Errors))
			}
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all sessions as indented JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			store, err := buildFallbackStore(logger, appConfig)
			if err != nil {
				return err
			}

			data, err := store.ExportData(cmd.Context())
			if err != nil {
				return err
			}

			if outputPath == "" {
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Write the export to a file instead of stdout")
	return cmd
}
