package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/apronworks/apron-agent/internal/airportdata"
	"github.com/apronworks/apron-agent/internal/db"
	"github.com/apronworks/apron-agent/internal/embeddings"
	"github.com/apronworks/apron-agent/internal/vectordb"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample airport data into the database",
	Long:  `Populates the configured database with a small sample airport: terminals, piers, stands, airlines, aircraft types and a maintenance request, then builds the semantic knowledge index from the seeded records. Run it once against a fresh database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := buildLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
		}
		defer database.Close()

		data := airportdata.NewStore(database)
		ctx := context.Background()
		if err := data.Seed(ctx); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		fmt.Printf("Sample airport data written to %s\n", cfg.DatabasePath)

		embedder, err := embeddings.NewEmbedder(string(cfg.Model.Provider), cfg.Model.EmbeddingID)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		store, err := vectordb.NewChromemStore(embedder)
		if err != nil {
			return fmt.Errorf("creating vector store: %w", err)
		}

		ingestor, err := vectordb.NewIngestor(data, store, logger)
		if err != nil {
			return fmt.Errorf("creating ingestor: %w", err)
		}
		defer ingestor.Destroy()

		count, err := ingestor.IngestAll(ctx)
		if err != nil {
			return fmt.Errorf("building knowledge index: %w", err)
		}

		dir := filepath.Join(cfg.DataDir, "vectordb")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data dir %s: %w", dir, err)
		}
		if err := store.Persist(ctx, dir); err != nil {
			return fmt.Errorf("persisting knowledge index: %w", err)
		}
		fmt.Printf("Knowledge index with %d documents written to %s\n", count, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
