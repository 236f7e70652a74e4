package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wardline/wallet-backend/internal/activity"
	"github.com/wardline/wallet-backend/internal/api"
	"github.com/wardline/wallet-backend/internal/approval"
	"github.com/wardline/wallet-backend/internal/config"
	"github.com/wardline/wallet-backend/internal/logger"
	"github.com/wardline/wallet-backend/internal/outbox"
	"github.com/wardline/wallet-backend/internal/store"
	"github.com/wardline/wallet-backend/internal/ward"
)

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Guardian wallet backend",
	Long:  `Backend service for ward/guardian approval workflows and the unified activity feed.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dispatchEventsCmd)
	rootCmd.AddCommand(issueTokenCmd)

	dispatchEventsCmd.Flags().Int("max", 0, "maximum number of events per batch (0 uses the configured default)")
	dispatchEventsCmd.Flags().Bool("dry-run", false, "select events without sending or marking them")
}

func initConfig() {
	// .env is optional; real deployments use config.json or the environment.
	_ = godotenv.Load()

	if err := config.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(viper.GetString("log_level"), viper.GetString("ENV") == "development")
}

// openStore builds the configured store backend.
func openStore() (store.Store, error) {
	switch store.Backend(viper.GetString("store_backend")) {
	case store.BackendREST:
		timeout, _ := time.ParseDuration(viper.GetString("store_timeout"))
		return store.NewRESTStore(
			viper.GetString("store_rest_url"),
			viper.GetString("store_rest_api_key"),
			timeout,
		), nil
	default:
		return store.Open(viper.GetString("store_db_path"))
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()

		if err := api.InitJWTKey(); err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}

		producer := outbox.NewProducer(st, logger.With("outbox"))
		dispatcher := outbox.NewDispatcher(st, outbox.LogSender{Log: logger.With("push")}, logger.With("outbox"))

		server := api.NewServer(
			ward.NewService(st, producer, logger.With("ward")),
			approval.NewService(st, logger.With("approval")),
			activity.NewService(st, logger.With("activity")),
			dispatcher,
			log,
			viper.GetInt("api_port"),
		)

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Stop(ctx)
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the embedded SQLite schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(viper.GetString("store_db_path"))
		if err != nil {
			return err
		}
		defer st.Close()
		log := logger.Get()
		log.Info().Str("path", viper.GetString("store_db_path")).Msg("schema migrated")
		return nil
	},
}

var dispatchEventsCmd = &cobra.Command{
	Use:   "dispatch-events",
	Short: "Dispatch pending outbox events and reconcile missed ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		maxEvents, _ := cmd.Flags().GetInt("max")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		st, err := openStore()
		if err != nil {
			return err
		}

		producer := outbox.NewProducer(st, logger.With("outbox"))
		if !dryRun {
			if _, err := producer.Reconcile(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("outbox reconcile failed")
			}
		}

		dispatcher := outbox.NewDispatcher(st, outbox.LogSender{Log: logger.With("push")}, logger.With("outbox"))
		result, err := dispatcher.DispatchPending(cmd.Context(), maxEvents, dryRun)
		if err != nil {
			return err
		}

		log.Info().
			Int("selected", result.Selected).
			Int("dispatched", result.Dispatched).
			Int("dead_lettered", result.DeadLettered).
			Bool("dry_run", result.DryRun).
			Msg("outbox dispatch finished")
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token [wallet-address]",
	Short: "Issue a development JWT for a wallet address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.InitJWTKey(); err != nil {
			return err
		}
		token, err := api.GenerateJWT(args[0], 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
