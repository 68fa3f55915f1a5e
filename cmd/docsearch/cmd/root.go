// Package cmd provides the CLI commands for docsearch.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"docsearch/internal/analysis"
	"docsearch/internal/config"
	"docsearch/internal/domain"
	"docsearch/internal/llm"
	"docsearch/internal/loader"
	"docsearch/internal/logging"
	"docsearch/internal/retriever"
	"docsearch/internal/service"
)

var (
	configPath string
	verbose    bool
)

// NewRootCmd creates the root command for the docsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Ask questions about PDF, Word and CSV documents",
		Long: `docsearch ingests PDF, DOCX and CSV files into per-type lexical
indexes, routes each question to the best document type with a language
model and answers it from the retrieved passages.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/docsearch/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to the console")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newTUICmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app holds the components shared by every command.
type app struct {
	cfg      *config.AppConfig
	logger   arbor.ILogger
	analyzer *analysis.Analyzer
	model    domain.LanguageModel
	loaders  loader.Registry
}

func newApp(ctx context.Context, console bool) (*app, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging, console || verbose)

	a, err := analysis.New(cfg.Retriever.StopWords...)
	if err != nil {
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	model, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		analyzer: a,
		model:    model,
		loaders: loader.NewRegistry(loader.Options{
			SentencesPerChunk: cfg.Loader.SentencesPerChunk,
			OverlapSentences:  cfg.Loader.OverlapSentences,
		}),
	}, nil
}

// newProcessor returns an empty corpus manager. It is the server's factory.
func (a *app) newProcessor() *service.Processor {
	return service.NewProcessor(a.analyzer, a.loaders, a.model, service.Options{
		Retriever: retriever.Options{
			MaxFeatures: a.cfg.Retriever.MaxFeatures,
			TopK:        a.cfg.Retriever.TopKByKind(),
		},
		DigestSentences: a.cfg.Summarizer.MaxSentences,
	}, a.logger)
}

func formatCounts(counts map[domain.Kind]int) string {
	s := ""
	for i, k := range domain.Kinds {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %d", k, counts[k])
	}
	return s
}
