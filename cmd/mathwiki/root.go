package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docutag/mathwiki/store"
	"github.com/docutag/mathwiki/store/memory"
	"github.com/docutag/mathwiki/store/mongo"
	"github.com/docutag/mathwiki/store/postgres"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Flag variables shared by every command
var (
	flagVerbose     bool
	flagStore       string
	flagDatabaseURL string
	flagMongoURI    string
	flagMongoDB     string
)

var rootCmd = &cobra.Command{
	Use:   "mathwiki",
	Short: "mathwiki - crawl competition math problems into a document store",
	Long: `mathwiki turns the problem pages of a math competition wiki into
normalized records and loads them into a document store.

Usage:
  mathwiki crawl amc8 --from 2020 --to 2024
  mathwiki load checkpoints/amc8-2020-2024.json --store postgres
  mathwiki verify amc8 2024 7`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Development logging at debug level")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", getEnv("STORE_DRIVER", "memory"), "Document store: memory, postgres or mongo")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", getEnv("DATABASE_URL", ""), "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&flagMongoURI, "mongo-uri", getEnv("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	rootCmd.PersistentFlags().StringVar(&flagMongoDB, "mongo-db", getEnv("MONGO_DB", "mathwiki"), "MongoDB database name")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newLogger builds a production logger, or a development one with --verbose
func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore connects to the store selected by --store
func openStore(ctx context.Context, logger *zap.Logger) (store.Store, error) {
	switch flagStore {
	case "memory":
		logger.Warn("using in-memory store, records are lost on exit")
		return memory.New(memory.Config{Ceiling: store.DefaultWriterConfig().Ceiling}), nil

	case "postgres":
		if flagDatabaseURL == "" {
			return nil, fmt.Errorf("--database-url or DATABASE_URL is required for the postgres store")
		}
		logger.Info("using PostgreSQL store")
		s, err := postgres.New(ctx, postgres.Config{DSN: flagDatabaseURL})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "mongo":
		config := mongo.DefaultConfig()
		config.URI = flagMongoURI
		config.Database = flagMongoDB
		config.Transactions = getEnv("MONGO_TRANSACTIONS", "true") != "false"
		logger.Info("using MongoDB store", zap.String("database", config.Database))
		s, err := mongo.New(ctx, config)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store %q (want memory, postgres or mongo)", flagStore)
	}
}
