package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/akolanti/TenderRAG/internal/bootstrap"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/ingest"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	dirFlag       string
	kbIdFlag      string
	configFlag    string
	providerFlag  string
	batchFlag     int
	maxTokensFlag int
	overlapFlag   int
)

var rootCmd = &cobra.Command{
	Use:   "build-index --dir <path> --kb-id <id>",
	Short: "Build the vector index of a knowledge base from a directory of PDFs",
	Long: `Scans a directory for PDF files, parses and chunks them, embeds the chunks
and atomically replaces the index of the knowledge base.

Documents that fail to parse or embed are skipped and listed in the summary.
The command fails when no document could be indexed.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runBuild,
}

func init() {
	rootCmd.Flags().StringVar(&dirFlag, "dir", "", "directory to scan for *.pdf")
	rootCmd.Flags().StringVar(&kbIdFlag, "kb-id", config.DefaultKnowledgeBaseId, "knowledge base to build")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "optional YAML settings file")
	rootCmd.Flags().StringVar(&providerFlag, "provider", "", "embedding provider (google, openai, ollama, hash)")
	rootCmd.Flags().IntVar(&batchFlag, "batch", 0, "embedding batch size")
	rootCmd.Flags().IntVar(&maxTokensFlag, "max-tokens", 0, "max tokens per chunk")
	rootCmd.Flags().IntVar(&overlapFlag, "overlap", -1, "token overlap between chunks")
	_ = rootCmd.MarkFlagRequired("dir")
}

// loadSettings layers the flags over the file and environment settings.
func loadSettings() (config.Settings, error) {
	s, err := config.Load(configFlag)
	if err != nil {
		return s, err
	}
	if providerFlag != "" {
		s.Embedding.Provider = providerFlag
		s.Embedding.Model = ""
	}
	if batchFlag > 0 {
		s.Embedding.BatchSize = batchFlag
	}
	if maxTokensFlag > 0 {
		s.Chunking.MaxTokens = maxTokensFlag
	}
	if overlapFlag >= 0 {
		s.Chunking.OverlapTokens = overlapFlag
	}
	s.ApplyModelDefaults()
	return s, s.Validate()
}

func runBuild(cmd *cobra.Command, _ []string) error {
	kbId := strings.TrimSpace(kbIdFlag)
	if kbId == "" {
		return errors.New("--kb-id must not be empty")
	}

	settings, err := loadSettings()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger_i.InitTo(cmd.ErrOrStderr(), settings.IsProd, settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources, err := ingest.ScanDirectory(dirFlag)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("%s: %w", dirFlag, ingest.ErrNoDocuments)
	}

	components, err := bootstrap.New(ctx, settings)
	if err != nil {
		return err
	}

	cmd.Printf("Building %s from %d documents in %s...\n", kbId, len(sources), dirFlag)
	summary, err := components.Pipeline.Build(ctx, kbId, sources)
	cmd.Println(summary.String())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	cmd.Printf("%d succeeded / %d skipped in %s\n", len(summary.Succeeded), len(summary.Skipped), summary.Duration.Round(time.Millisecond))
	return nil
}
